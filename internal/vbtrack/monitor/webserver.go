// Package monitor serves the HTTP observability surface for the beacon
// tracker: health, JSON stats, and a debug chart of current beacon
// positions. It reads tracker state; it never influences matching.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/beacontrack/internal/monitoring"
	"github.com/banshee-data/beacontrack/internal/vbtrack"
	"github.com/banshee-data/beacontrack/internal/version"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WebServer handles the HTTP interface for tracker statistics.
type WebServer struct {
	address  string
	sensorID string
	tracker  *vbtrack.Tracker
	server   *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	SensorID string
	Tracker  *vbtrack.Tracker
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  config.Address,
		sensorID: config.SensorID,
		tracker:  config.Tracker,
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/tracker/stats", ws.handleStats)
	mux.HandleFunc("/api/tracker/beacons", ws.handleBeacons)
	mux.HandleFunc("/debug/beacons", ws.handleBeaconChart)
	return mux
}

// Start begins the HTTP server in a goroutine and blocks until the
// context is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// Handler exposes the route mux for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleStats returns running counters plus the most recent frame's
// metrics as JSON.
func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no tracker configured")
		return
	}
	frames, meas, matches, resubmits, spawned, erased := ws.tracker.Stats().Snapshot()
	total, tentative, confirmed := ws.tracker.BeaconCount()
	last := ws.tracker.LastMetrics()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sensor_id": ws.sensorID,
		"counters": map[string]int64{
			"frames":       frames,
			"measurements": meas,
			"matches":      matches,
			"resubmits":    resubmits,
			"spawned":      spawned,
			"erased":       erased,
		},
		"beacons": map[string]int{
			"total":     total,
			"tentative": tentative,
			"confirmed": confirmed,
		},
		"last_frame": last,
	})
}

type beaconJSON struct {
	TrackID       string  `json:"track_id"`
	OneBasedID    int     `json:"one_based_id,omitempty"`
	State         string  `json:"state"`
	Misidentified bool    `json:"misidentified,omitempty"`
	X             float32 `json:"x"`
	Y             float32 `json:"y"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Observations  int     `json:"observations"`
}

// handleBeacons returns the current beacon set as JSON.
func (ws *WebServer) handleBeacons(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no tracker configured")
		return
	}
	beacons := ws.tracker.ActiveBeacons()
	out := make([]beaconJSON, 0, len(beacons))
	for _, b := range beacons {
		out = append(out, beaconJSON{
			TrackID:       b.TrackID,
			OneBasedID:    b.OneBasedID,
			State:         string(b.State),
			Misidentified: b.Misidentified,
			X:             b.Loc.X,
			Y:             b.Loc.Y,
			Hits:          b.Hits,
			Misses:        b.Misses,
			Observations:  b.ObservationCount,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleBeaconChart renders a scatter plot (HTML) of current beacon
// positions using go-echarts. Debugging-only endpoint: a quick visual
// check of the tracked constellation without a frontend.
func (ws *WebServer) handleBeaconChart(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no tracker configured")
		return
	}
	beacons := ws.tracker.ActiveBeacons()

	confirmed := make([]opts.ScatterData, 0, len(beacons))
	tentative := make([]opts.ScatterData, 0)
	for _, b := range beacons {
		point := opts.ScatterData{Value: []interface{}{b.Loc.X, b.Loc.Y}, Name: b.TrackID}
		if b.State == vbtrack.BeaconConfirmed {
			confirmed = append(confirmed, point)
		} else {
			tentative = append(tentative, point)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Beacon Positions", Theme: "dark", Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tracked Beacons",
			Subtitle: fmt.Sprintf("sensor=%s beacons=%d", ws.sensorID, len(beacons)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("confirmed", confirmed, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("tentative", tentative, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

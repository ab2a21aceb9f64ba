// Command tracker replays recorded blob frames through the beacon
// tracker, persists the resulting tracks to SQLite, and serves the
// monitor HTTP interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/beacontrack/internal/config"
	"github.com/banshee-data/beacontrack/internal/vbtrack"
	"github.com/banshee-data/beacontrack/internal/vbtrack/monitor"
	"github.com/banshee-data/beacontrack/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address for the monitor interface")
	dbFile     = flag.String("db", "tracker_data.db", "Track database path")
	configPath = flag.String("config", config.DefaultConfigPath, "Tuning config path")
	replayFile = flag.String("replay", "", "JSONL blob frame recording to replay")
	sensorID   = flag.String("sensor", "camera0", "Sensor identifier for persisted tracks")
	numBeacons = flag.Int("beacons", 34, "Declared count of identifiable beacons")
	frameRate  = flag.Float64("rate", 0, "Replay frame rate in fps (0 = as fast as possible)")
	verbose    = flag.Bool("verbose", false, "Trace every association decision to stderr")
	showVer    = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("tracker %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *replayFile == "" {
		log.Fatal("a -replay recording is required (live capture is handled upstream)")
	}

	tuning, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	trackerCfg := vbtrack.TrackerConfigFromTuning(tuning)
	if *verbose {
		trackerCfg.VerboseAssign = true
	}
	if *verbose {
		vbtrack.SetLogWriters(vbtrack.LogWriters{Ops: os.Stderr, Diag: os.Stderr, Trace: os.Stderr})
	} else {
		vbtrack.SetLogWriters(vbtrack.LogWriters{Ops: os.Stderr, Diag: os.Stderr})
	}

	f, err := os.Open(*replayFile)
	if err != nil {
		log.Fatalf("failed to open replay file: %v", err)
	}
	frames, err := vbtrack.ReadFrames(f)
	f.Close()
	if err != nil {
		log.Fatalf("failed to read replay file: %v", err)
	}
	log.Printf("loaded %d frames from %s", len(frames), *replayFile)

	store, err := vbtrack.OpenTrackStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open track database: %v", err)
	}
	defer store.Close()

	tracker := vbtrack.NewTracker(*numBeacons, trackerCfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Monitor HTTP interface
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:  *listen,
			SensorID: *sensorID,
			Tracker:  tracker,
		})
		if err := ws.Start(ctx); err != nil {
			log.Printf("monitor server error: %v", err)
		}
	}()

	// Periodic stats logging
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(tuning.GetFlushInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tracker.Stats().LogStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Replay loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()

		var interFrame time.Duration
		if *frameRate > 0 {
			interFrame = time.Duration(float64(time.Second) / *frameRate)
		}

		for i, frame := range frames {
			select {
			case <-ctx.Done():
				return
			default:
			}

			ts := time.Unix(0, frame.TSUnixNanos)
			if frame.TSUnixNanos == 0 {
				ts = time.Now()
			}
			metrics := tracker.UpdateFrame(frame.ToMeasurements(), ts)

			if err := store.InsertFrameMetrics(metrics, *sensorID); err != nil {
				log.Printf("failed to persist frame metrics: %v", err)
			}
			for _, b := range tracker.ActiveBeacons() {
				if err := store.UpsertBeaconTrack(b, *sensorID); err != nil {
					log.Printf("failed to persist track %s: %v", b.TrackID, err)
					continue
				}
				if b.Used {
					if err := store.InsertObservation(b.TrackID, metrics.TimestampNanos, b.Loc.X, b.Loc.Y, b.DiameterAvg); err != nil {
						log.Printf("failed to persist observation for %s: %v", b.TrackID, err)
					}
				}
			}

			if (i+1)%100 == 0 {
				log.Printf("replayed %d/%d frames", i+1, len(frames))
			}
			if interFrame > 0 {
				select {
				case <-time.After(interFrame):
				case <-ctx.Done():
					return
				}
			}
		}
		tracker.Stats().LogStats()
		log.Printf("replay complete: %d frames", len(frames))
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

package vbtrack

import (
	"database/sql"
	_ "embed"
	"fmt"
)

// TrackStore persists beacon tracks, observations and frame metrics to
// SQLite. Callers are responsible for importing a database/sql driver
// registered under the name "sqlite" (the binaries blank-import
// modernc.org/sqlite).
type TrackStore struct {
	db *sql.DB
}

//go:embed schema.sql
var schemaSQL string

// OpenTrackStore opens (creating if necessary) a track database at path
// and bootstraps the schema.
func OpenTrackStore(path string) (*TrackStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open track db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &TrackStore{db: db}, nil
}

// NewTrackStoreWithDB wraps an already-open database. The schema is
// bootstrapped if missing. Intended for tests and shared-handle setups.
func NewTrackStoreWithDB(db *sql.DB) (*TrackStore, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &TrackStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *TrackStore) Close() error {
	return s.db.Close()
}

// UpsertBeaconTrack inserts or updates the summary row for a beacon.
// ON CONFLICT DO UPDATE is used rather than INSERT OR REPLACE so the
// cascade on beacon_track_obs does not delete prior observations.
func (s *TrackStore) UpsertBeaconTrack(b *Beacon, sensorID string) error {
	query := `
		INSERT INTO beacon_tracks (
			track_id, sensor_id, one_based_id, track_state, misidentified,
			first_unix_nanos, last_unix_nanos, observation_count,
			diameter_avg, last_x, last_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			sensor_id = excluded.sensor_id,
			one_based_id = excluded.one_based_id,
			track_state = excluded.track_state,
			misidentified = excluded.misidentified,
			first_unix_nanos = excluded.first_unix_nanos,
			last_unix_nanos = excluded.last_unix_nanos,
			observation_count = excluded.observation_count,
			diameter_avg = excluded.diameter_avg,
			last_x = excluded.last_x,
			last_y = excluded.last_y
	`
	_, err := s.db.Exec(query,
		b.TrackID, sensorID, b.OneBasedID, string(b.State), boolToInt(b.Misidentified),
		b.FirstUnixNanos, b.LastUnixNanos, b.ObservationCount,
		b.DiameterAvg, b.Loc.X, b.Loc.Y,
	)
	if err != nil {
		return fmt.Errorf("upsert beacon track: %w", err)
	}
	return nil
}

// InsertObservation records one accepted measurement for a track.
func (s *TrackStore) InsertObservation(trackID string, tsUnixNanos int64, x, y, diameter float32) error {
	query := `
		INSERT INTO beacon_track_obs (track_id, ts_unix_nanos, x, y, diameter)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, trackID, tsUnixNanos, x, y, diameter); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// InsertFrameMetrics records the outcome of one frame update.
func (s *TrackStore) InsertFrameMetrics(m FrameMetrics, sensorID string) error {
	query := `
		INSERT INTO frame_metrics (
			sensor_id, ts_unix_nanos, measurements, matches, resubmits,
			spawned, erased, discarded, candidate_count, candidate_fraction,
			match_dist_p50, match_dist_p85, match_dist_p95
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		sensorID, m.TimestampNanos, m.Measurements, m.Matches, m.Resubmits,
		m.Spawned, m.Erased, m.Discarded, m.CandidateCount, m.CandidateFraction,
		m.MatchDistP50, m.MatchDistP85, m.MatchDistP95,
	)
	if err != nil {
		return fmt.Errorf("insert frame metrics: %w", err)
	}
	return nil
}

// BeaconTrackRow is the stored summary of one beacon track.
type BeaconTrackRow struct {
	TrackID          string
	SensorID         string
	OneBasedID       int
	State            BeaconState
	Misidentified    bool
	FirstUnixNanos   int64
	LastUnixNanos    int64
	ObservationCount int
	DiameterAvg      float32
	LastX            float32
	LastY            float32
}

// GetTrack returns a stored track by ID, or nil if not found.
func (s *TrackStore) GetTrack(trackID string) (*BeaconTrackRow, error) {
	query := `
		SELECT track_id, sensor_id, one_based_id, track_state, misidentified,
			first_unix_nanos, last_unix_nanos, observation_count,
			diameter_avg, last_x, last_y
		FROM beacon_tracks WHERE track_id = ?
	`
	row := s.db.QueryRow(query, trackID)
	var r BeaconTrackRow
	var state string
	var misidentified int
	err := row.Scan(&r.TrackID, &r.SensorID, &r.OneBasedID, &state, &misidentified,
		&r.FirstUnixNanos, &r.LastUnixNanos, &r.ObservationCount,
		&r.DiameterAvg, &r.LastX, &r.LastY)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	r.State = BeaconState(state)
	r.Misidentified = misidentified != 0
	return &r, nil
}

// GetTracksInRange returns tracks for a sensor whose last observation
// falls within [startNanos, endNanos], most recent first.
func (s *TrackStore) GetTracksInRange(sensorID string, startNanos, endNanos int64, limit int) ([]*BeaconTrackRow, error) {
	query := `
		SELECT track_id, sensor_id, one_based_id, track_state, misidentified,
			first_unix_nanos, last_unix_nanos, observation_count,
			diameter_avg, last_x, last_y
		FROM beacon_tracks
		WHERE sensor_id = ? AND last_unix_nanos BETWEEN ? AND ?
		ORDER BY last_unix_nanos DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, sensorID, startNanos, endNanos, limit)
	if err != nil {
		return nil, fmt.Errorf("get tracks in range: %w", err)
	}
	defer rows.Close()

	var out []*BeaconTrackRow
	for rows.Next() {
		var r BeaconTrackRow
		var state string
		var misidentified int
		if err := rows.Scan(&r.TrackID, &r.SensorID, &r.OneBasedID, &state, &misidentified,
			&r.FirstUnixNanos, &r.LastUnixNanos, &r.ObservationCount,
			&r.DiameterAvg, &r.LastX, &r.LastY); err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		r.State = BeaconState(state)
		r.Misidentified = misidentified != 0
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetObservations returns up to limit observations for a track, oldest first.
func (s *TrackStore) GetObservations(trackID string, limit int) ([]BeaconPoint, error) {
	query := `
		SELECT ts_unix_nanos, x, y
		FROM beacon_track_obs
		WHERE track_id = ?
		ORDER BY ts_unix_nanos ASC
		LIMIT ?
	`
	rows, err := s.db.Query(query, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("get observations: %w", err)
	}
	defer rows.Close()

	var out []BeaconPoint
	for rows.Next() {
		var p BeaconPoint
		if err := rows.Scan(&p.Timestamp, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package vbtrack

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Frame recordings are JSON Lines: one FrameRecord per line. The format
// is the interchange between the blob extractor, the gen-blobframes
// tool, and replay in cmd/tracker.

// MeasurementRecord is the serialised form of one blob measurement.
type MeasurementRecord struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Diameter float32 `json:"diameter"`
}

// Measurement converts the record to the in-memory representation.
func (r MeasurementRecord) Measurement() Measurement {
	return Measurement{Loc: Point2{X: r.X, Y: r.Y}, Diameter: r.Diameter}
}

// FrameRecord is one recorded frame of blob measurements.
type FrameRecord struct {
	TSUnixNanos  int64               `json:"ts_unix_nanos"`
	Measurements []MeasurementRecord `json:"measurements"`
}

// ToMeasurements converts the frame's records to Measurement values.
func (f FrameRecord) ToMeasurements() []Measurement {
	out := make([]Measurement, len(f.Measurements))
	for i, r := range f.Measurements {
		out[i] = r.Measurement()
	}
	return out
}

// WriteFrame appends one frame to w as a JSON line.
func WriteFrame(w io.Writer, frame FrameRecord) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrames decodes all frames from r. Blank lines are skipped; a
// malformed line aborts with an error naming its line number.
func ReadFrames(r io.Reader) ([]FrameRecord, error) {
	var frames []FrameRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame FrameRecord
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("parse frame at line %d: %w", lineNo, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return frames, nil
}

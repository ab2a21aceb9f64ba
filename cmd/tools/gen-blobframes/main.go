// Command gen-blobframes generates synthetic blob frame recordings
// (JSONL) for testing replay: beacons on circular paths plus random
// clutter, with occasional dropout.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/banshee-data/beacontrack/internal/vbtrack"
)

var (
	output    = flag.String("o", "frames.jsonl", "output path")
	frames    = flag.Int("n", 300, "number of frames")
	beacons   = flag.Int("beacons", 8, "number of synthetic beacons")
	clutter   = flag.Int("clutter", 2, "average clutter blobs per frame")
	dropout   = flag.Float64("dropout", 0.05, "probability a beacon is missed per frame")
	frameRate = flag.Float64("rate", 30.0, "simulated frame rate (fps)")
	seed      = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
)

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	const (
		centerX, centerY = 640.0, 480.0
		orbitRadius      = 300.0
		angularSpeed     = 0.4 // rad/s
	)

	start := time.Now().UnixNano()
	framePeriod := int64(float64(time.Second) / *frameRate)

	for i := 0; i < *frames; i++ {
		ts := start + int64(i)*framePeriod
		elapsed := float64(i) / *frameRate

		rec := vbtrack.FrameRecord{TSUnixNanos: ts}
		for b := 0; b < *beacons; b++ {
			if rng.Float64() < *dropout {
				continue
			}
			phase := 2 * math.Pi * float64(b) / float64(*beacons)
			angle := phase + angularSpeed*elapsed
			// Apparent size varies with a slow pulse plus jitter.
			diameter := 8 + 3*math.Sin(elapsed+phase) + rng.Float64()
			rec.Measurements = append(rec.Measurements, vbtrack.MeasurementRecord{
				X:        float32(centerX + orbitRadius*math.Cos(angle) + rng.NormFloat64()),
				Y:        float32(centerY + orbitRadius*math.Sin(angle) + rng.NormFloat64()),
				Diameter: float32(diameter),
			})
		}
		nClutter := rng.Intn(*clutter*2 + 1)
		for c := 0; c < nClutter; c++ {
			rec.Measurements = append(rec.Measurements, vbtrack.MeasurementRecord{
				X:        float32(rng.Float64() * 2 * centerX),
				Y:        float32(rng.Float64() * 2 * centerY),
				Diameter: float32(2 + rng.Float64()*4),
			})
		}

		if err := vbtrack.WriteFrame(f, rec); err != nil {
			log.Fatalf("failed to write frame %d: %v", i, err)
		}
	}
	log.Printf("wrote %d frames to %s (seed %d)", *frames, *output, s)
}

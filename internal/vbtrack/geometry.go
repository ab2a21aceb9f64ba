package vbtrack

// Point2 is a 2D point in image space (pixels). Float32 matches the
// precision the upstream blob extractor reports.
type Point2 struct {
	X float32
	Y float32
}

// Sub returns the component-wise difference p - q.
func (p Point2) Sub(q Point2) Point2 {
	return Point2{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dot returns the dot product of p and q.
func (p Point2) Dot(q Point2) float32 {
	return p.X*q.X + p.Y*q.Y
}

// SqDist returns the squared Euclidean distance between two points.
// Squared distances are used throughout association to avoid sqrt calls
// in the O(beacons × measurements) inner loop.
func SqDist(a, b Point2) float32 {
	d := a.Sub(b)
	return d.Dot(d)
}

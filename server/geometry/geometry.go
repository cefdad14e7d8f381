// Package geometry holds the planar math used to grade body positions.
package geometry

import (
	"math"

	"github.com/san-kum/pushup-cv/server/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// Angle returns the angle at vertex b formed by the rays b->a and b->c, in
// degrees within [0, 180]. Missing points or a zero-length ray yield 0.
func Angle(a, b, c *models.Point) float64 {
	if a == nil || b == nil || c == nil {
		return 0
	}

	vertex := toVec(*b)
	ba := r2.Sub(toVec(*a), vertex)
	bc := r2.Sub(toVec(*c), vertex)

	magBA := r2.Norm(ba)
	magBC := r2.Norm(bc)
	if magBA == 0 || magBC == 0 {
		return 0
	}

	// acos is undefined outside [-1, 1]; rounding can push us just past it.
	cosine := r2.Dot(ba, bc) / (magBA * magBC)
	cosine = math.Max(-1, math.Min(1, cosine))

	return math.Acos(cosine) * 180 / math.Pi
}

func Midpoint(p1, p2 models.Point) models.Point {
	mid := r2.Scale(0.5, r2.Add(toVec(p1), toVec(p2)))
	return models.Point{X: mid.X, Y: mid.Y}
}

func toVec(p models.Point) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

package geo

import "math"

// Pt is a projected planar point in meters, relative to a Proj's origin.
type Pt struct {
	X, Y float64
}

// Proj is a local equirectangular projection centered on a fixed latitude,
// used to turn lat/lng geometry into planar meters for polygon containment,
// distance-to-exterior, and rasterization math.
type Proj struct {
	lat0, lon0 float64
	cosLat0    float64
}

// NewProj builds a projection centered on the given reference point.
func NewProj(lat0, lon0 float64) Proj {
	return Proj{lat0: lat0, lon0: lon0, cosLat0: math.Cos(lat0 * math.Pi / 180)}
}

// ToPt projects a lat/lng pair to planar meters.
func (p Proj) ToPt(lat, lon float64) Pt {
	x := (lon - p.lon0) * p.cosLat0 * math.Pi / 180 * earthRadiusMeters
	y := (lat - p.lat0) * math.Pi / 180 * earthRadiusMeters
	return Pt{X: x, Y: y}
}

// ToLatLng inverts ToPt.
func (p Proj) ToLatLng(pt Pt) (lat, lon float64) {
	lat = p.lat0 + (pt.Y/earthRadiusMeters)*180/math.Pi
	lon = p.lon0 + (pt.X/(earthRadiusMeters*p.cosLat0))*180/math.Pi
	return lat, lon
}

// BearingDegrees returns the initial bearing in degrees [0,360) from (lat1,lon1)
// to (lat2,lon2), used to detect the near-straight-through geometry of a
// genuine intersection versus the sharp-angle geometry of a dog-leg.
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)
	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}

// AngleDiff returns the smallest absolute difference between two bearings,
// in the range [0,180].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Densify inserts evenly-spaced intermediate points along a polyline so that
// no segment exceeds maxSpacing meters; used before rasterizing roads into a
// render grid.
func Densify(lats, lons []float64, maxSpacing float64) (outLats, outLons []float64) {
	if len(lats) < 2 {
		return lats, lons
	}
	outLats = append(outLats, lats[0])
	outLons = append(outLons, lons[0])
	for i := 0; i < len(lats)-1; i++ {
		d := Haversine(lats[i], lons[i], lats[i+1], lons[i+1])
		steps := int(math.Ceil(d / maxSpacing))
		if steps < 1 {
			steps = 1
		}
		for s := 1; s <= steps; s++ {
			t := float64(s) / float64(steps)
			outLats = append(outLats, lats[i]+t*(lats[i+1]-lats[i]))
			outLons = append(outLons, lons[i]+t*(lons[i+1]-lons[i]))
		}
	}
	return outLats, outLons
}

// PointInPolygon reports whether pt lies inside the closed ring (even-odd rule).
func PointInPolygon(pt Pt, ring []Pt) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) &&
			pt.X < (pj.X-pi.X)*(pt.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// DistToPolylineExterior returns the minimum distance in meters from pt to any
// segment of the ring, used for the border-intersection epsilon threshold.
func DistToPolylineExterior(pt Pt, ring []Pt) float64 {
	best := math.Inf(1)
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		d := distPtToSegPlanar(pt, a, b)
		if d < best {
			best = d
		}
	}
	return best
}

func distPtToSegPlanar(p, a, b Pt) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	cx := a.X + t*dx
	cy := a.Y + t*dy
	return math.Hypot(p.X-cx, p.Y-cy)
}

// SegmentsIntersect reports whether two planar segments properly intersect or
// touch, used for the neighbourhood "crosses" classification.
func SegmentsIntersect(p1, p2, p3, p4 Pt) bool {
	d1 := cross(sub(p4, p3), sub(p1, p3))
	d2 := cross(sub(p4, p3), sub(p2, p3))
	d3 := cross(sub(p2, p1), sub(p3, p1))
	d4 := cross(sub(p2, p1), sub(p4, p1))
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSeg(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSeg(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSeg(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSeg(p1, p2, p4) {
		return true
	}
	return false
}

func sub(a, b Pt) Pt       { return Pt{a.X - b.X, a.Y - b.Y} }
func cross(a, b Pt) float64 { return a.X*b.Y - a.Y*b.X }
func onSeg(a, b, p Pt) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// LineLocatePoint returns the fractional distance [0,1] along the polyline at
// which the closest point to pt occurs, the true minimum distance from pt to
// that polyline (the per-segment minimum, not the two-endpoint chord), and
// that closest point.
func LineLocatePoint(lats, lons []float64, lat, lon float64) (frac, dist, closeLat, closeLon float64) {
	if len(lats) < 2 {
		if len(lats) == 1 {
			return 0, Haversine(lat, lon, lats[0], lons[0]), lats[0], lons[0]
		}
		return 0, math.Inf(1), lat, lon
	}
	totalLen := 0.0
	segLens := make([]float64, len(lats)-1)
	for i := range segLens {
		segLens[i] = Haversine(lats[i], lons[i], lats[i+1], lons[i+1])
		totalLen += segLens[i]
	}
	if totalLen == 0 {
		return 0, Haversine(lat, lon, lats[0], lons[0]), lats[0], lons[0]
	}

	bestDist := math.Inf(1)
	bestFrac := 0.0
	bestLat, bestLon := lats[0], lons[0]
	acc := 0.0
	for i := range segLens {
		d, t := PointToSegmentDist(lat, lon, lats[i], lons[i], lats[i+1], lons[i+1])
		if d < bestDist {
			bestDist = d
			bestFrac = (acc + t*segLens[i]) / totalLen
			bestLat = lats[i] + t*(lats[i+1]-lats[i])
			bestLon = lons[i] + t*(lons[i+1]-lons[i])
		}
		acc += segLens[i]
	}
	return bestFrac, bestDist, bestLat, bestLon
}

// SplitLineString cuts a polyline at two fractional positions [0,1] and
// returns the sub-polyline between them (loStart may be > hiEnd to mean the
// whole line is kept, used when slicing a road by a PercentInterval).
func SplitLineString(lats, lons []float64, startFrac, endFrac float64) (outLats, outLons []float64) {
	if startFrac > endFrac {
		startFrac, endFrac = endFrac, startFrac
	}
	totalLen := 0.0
	segLens := make([]float64, len(lats)-1)
	for i := range segLens {
		segLens[i] = Haversine(lats[i], lons[i], lats[i+1], lons[i+1])
		totalLen += segLens[i]
	}
	if totalLen == 0 || len(lats) < 2 {
		return lats, lons
	}

	startDist := startFrac * totalLen
	endDist := endFrac * totalLen

	acc := 0.0
	for i := range segLens {
		segStart := acc
		segEnd := acc + segLens[i]
		acc = segEnd

		if segEnd < startDist || segStart > endDist {
			continue
		}

		a0, a1 := lats[i], lats[i+1]
		b0, b1 := lons[i], lons[i+1]

		lo := 0.0
		hi := 1.0
		if segLens[i] > 0 {
			if segStart < startDist {
				lo = (startDist - segStart) / segLens[i]
			}
			if segEnd > endDist {
				hi = (endDist - segStart) / segLens[i]
			}
		}

		if len(outLats) == 0 {
			outLats = append(outLats, a0+lo*(a1-a0))
			outLons = append(outLons, b0+lo*(b1-b0))
		}
		outLats = append(outLats, a0+hi*(a1-a0))
		outLons = append(outLons, b0+hi*(b1-b0))
	}
	return outLats, outLons
}

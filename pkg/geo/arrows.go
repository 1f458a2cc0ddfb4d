package geo

import "math"

// PolylineLength returns the total great-circle length of a polyline in meters.
func PolylineLength(lats, lons []float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(lats); i++ {
		total += Haversine(lats[i], lons[i], lats[i+1], lons[i+1])
	}
	return total
}

// DestinationPt returns the point reached by travelling distM meters from
// (lat, lon) at bearingDeg compass degrees. Ported from
// geo_helpers/mod.rs's euclidean_destination_coord, using the haversine
// destination formula instead of a planar approximation since callers here
// work directly in lat/lon rather than a neighbourhood's local projection.
func DestinationPt(lat, lon, bearingDeg, distM float64) (float64, float64) {
	brng := bearingDeg * math.Pi / 180
	lat1 := lat * math.Pi / 180
	lon1 := lon * math.Pi / 180
	angDist := distM / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angDist) + math.Cos(lat1)*math.Sin(angDist)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(angDist)*math.Cos(lat1),
		math.Cos(angDist)-math.Sin(lat1)*math.Sin(lat2),
	)
	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// PointAlongLine returns the point at fractional distance frac along the
// polyline, mirroring the `geo` crate's LineInterpolatePoint used by
// movements.rs to place each movement arrow's endpoints.
func PointAlongLine(lats, lons []float64, frac float64) (lat, lon float64) {
	if len(lats) == 0 {
		return 0, 0
	}
	if len(lats) == 1 || frac <= 0 {
		return lats[0], lons[0]
	}
	if frac >= 1 {
		return lats[len(lats)-1], lons[len(lons)-1]
	}
	total := PolylineLength(lats, lons)
	if total == 0 {
		return lats[0], lons[0]
	}
	target := frac * total
	acc := 0.0
	for i := 0; i+1 < len(lats); i++ {
		segLen := Haversine(lats[i], lons[i], lats[i+1], lons[i+1])
		if acc+segLen >= target {
			t := 0.0
			if segLen > 0 {
				t = (target - acc) / segLen
			}
			return lats[i] + t*(lats[i+1]-lats[i]), lons[i] + t*(lons[i+1]-lons[i])
		}
		acc += segLen
	}
	return lats[len(lats)-1], lons[len(lons)-1]
}

// ThickenLine turns a two-point line into a closed rectangle ring of the
// given total thickness (half on each side), expressed as parallel lat/lon
// slices. Callers use it as the fallback when MakeArrow reports (ok=false) a
// shaft too short to carve an arrowhead out of. Ported from geo_helpers/mod.rs's
// thicken_line.
func ThickenLine(aLat, aLon, bLat, bLon, thickness float64) (lats, lons []float64) {
	angle := BearingDegrees(aLat, aLon, bLat, bLon)
	left := angle - 90
	right := angle + 90
	half := thickness / 2

	p1Lat, p1Lon := DestinationPt(aLat, aLon, left, half)
	p2Lat, p2Lon := DestinationPt(bLat, bLon, left, half)
	p3Lat, p3Lon := DestinationPt(bLat, bLon, right, half)
	p4Lat, p4Lon := DestinationPt(aLat, aLon, right, half)

	return []float64{p1Lat, p2Lat, p3Lat, p4Lat, p1Lat}, []float64{p1Lon, p2Lon, p3Lon, p4Lon, p1Lon}
}

// MakeArrow builds a single-headed arrow polygon pointing from (aLat, aLon)
// to (bLat, bLon): a thickened shaft capped with a triangular head at b. It
// returns ok=false when the line is too short to fit a head, in which case
// the caller should fall back to ThickenLine — mirroring movements.rs's
// `make_arrow(line, thickness, false).unwrap_or_else(|| thicken_line(line,
// thickness))`. double_ended is dropped from the port: every call site in
// movements.rs passes false.
func MakeArrow(aLat, aLon, bLat, bLon, thickness float64) (lats, lons []float64, ok bool) {
	length := Haversine(aLat, aLon, bLat, bLon)
	headLen := thickness * 2
	if length < headLen*1.5 {
		return nil, nil, false
	}
	angle := BearingDegrees(aLat, aLon, bLat, bLon)
	back := angle + 180
	shaftLat, shaftLon := DestinationPt(bLat, bLon, back, headLen)

	left := angle - 90
	right := angle + 90
	half := thickness / 2
	s1Lat, s1Lon := DestinationPt(aLat, aLon, left, half)
	s2Lat, s2Lon := DestinationPt(shaftLat, shaftLon, left, half)
	s3Lat, s3Lon := DestinationPt(shaftLat, shaftLon, right, half)
	s4Lat, s4Lon := DestinationPt(aLat, aLon, right, half)

	headHalf := thickness
	h1Lat, h1Lon := DestinationPt(shaftLat, shaftLon, left, headHalf)
	h3Lat, h3Lon := DestinationPt(shaftLat, shaftLon, right, headHalf)

	lats = []float64{s1Lat, s2Lat, h1Lat, bLat, h3Lat, s3Lat, s4Lat, s1Lat}
	lons = []float64{s1Lon, s2Lon, h1Lon, bLon, h3Lon, s3Lon, s4Lon, s1Lon}
	return lats, lons, true
}

// TrimNearRoadEndpoints slices the drawn line down to the portion nearest
// roadLat/roadLon's two endpoints, so a Hausdorff comparison against a long
// hand-drawn line isn't penalized for the drawn line's extent beyond the
// candidate road. A simplified port of
// geo_helpers/slice_nearest_boundary.rs's SliceNearEndpoints: rather than
// that file's dedicated Fréchet-boundary trait, this reuses the per-segment
// projection LineLocatePoint already computes for Snap.
func TrimNearRoadEndpoints(drawnLat, drawnLon, roadLat, roadLon []float64) (lats, lons []float64) {
	if len(roadLat) == 0 || len(drawnLat) < 2 {
		return drawnLat, drawnLon
	}
	fracStart, _, _, _ := LineLocatePoint(drawnLat, drawnLon, roadLat[0], roadLon[0])
	fracEnd, _, _, _ := LineLocatePoint(drawnLat, drawnLon, roadLat[len(roadLat)-1], roadLon[len(roadLon)-1])
	return SplitLineString(drawnLat, drawnLon, fracStart, fracEnd)
}

// HausdorffDistance returns the symmetric Hausdorff distance in meters
// between two polylines: the greater of the two directed distances (the
// worst-case nearest-point distance from one line's points to the other).
// Mirrors roads_along_line.rs's use of the `geo` crate's HausdorffDistance
// trait for scoring how closely a road matches a user-drawn line.
func HausdorffDistance(latsA, lonsA, latsB, lonsB []float64) float64 {
	return math.Max(
		directedHausdorff(latsA, lonsA, latsB, lonsB),
		directedHausdorff(latsB, lonsB, latsA, lonsA),
	)
}

func directedHausdorff(latsA, lonsA, latsB, lonsB []float64) float64 {
	worst := 0.0
	for i := range latsA {
		best := math.Inf(1)
		for j := range latsB {
			d := Haversine(latsA[i], lonsA[i], latsB[j], lonsB[j])
			if d < best {
				best = d
			}
		}
		if best > worst {
			worst = best
		}
	}
	return worst
}

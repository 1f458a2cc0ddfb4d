// Package geojsonio holds the small geometry-to-GeoJSON-coordinate
// conversions shared by neighbourhood boundaries, rendered cells, demand
// zones and the API's movement arrows.
package geojsonio

import "github.com/azybler/ltn/pkg/geo"

// LineStringCoords converts parallel lat/lon slices into GeoJSON's
// [lon, lat] coordinate-pair convention.
func LineStringCoords(lats, lons []float64) [][]float64 {
	out := make([][]float64, len(lats))
	for i := range lats {
		out[i] = []float64{lons[i], lats[i]}
	}
	return out
}

// PointCoord converts a single lat/lon pair into GeoJSON's [lon, lat] order.
func PointCoord(lat, lon float64) []float64 {
	return []float64{lon, lat}
}

// RingCoords converts a planar ring (as produced by a geo.Proj) back to
// WGS84 [lon, lat] coordinate pairs for GeoJSON emission.
func RingCoords(proj geo.Proj, ring []geo.Pt) [][]float64 {
	out := make([][]float64, len(ring))
	for i, p := range ring {
		lat, lon := proj.ToLatLng(p)
		out[i] = []float64{lon, lat}
	}
	return out
}

// PolygonRings converts a planar multi-ring polygon back to WGS84
// [lon, lat] rings, suitable for geojson.NewPolygonFeature.
func PolygonRings(proj geo.Proj, rings [][]geo.Pt) [][][]float64 {
	out := make([][][]float64, len(rings))
	for i, ring := range rings {
		out[i] = RingCoords(proj, ring)
	}
	return out
}

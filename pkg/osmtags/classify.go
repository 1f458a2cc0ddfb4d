// Package osmtags classifies raw OpenStreetMap tags into the road and
// severance categories the rest of the analysis engine reasons about.
package osmtags

import "github.com/paulmach/osm"

// RoadKind categorizes a way for routing and rendering purposes.
type RoadKind int

const (
	// KindIgnore means the way carries no motor traffic and is not a
	// severance feature either; it is dropped entirely during ingestion.
	KindIgnore RoadKind = iota
	KindMotorway
	KindTrunk
	KindPrimary
	KindSecondary
	KindTertiary
	KindResidential
	KindLivingStreet
	KindService
	KindUnclassified
	// KindPedestrian is highway=pedestrian: structurally part of the graph
	// (so the floodfill/router can reason about it) but always motor-blocked,
	// expressed as an automatic WalkCycleOnly modal filter rather than by
	// being dropped at ingestion time.
	KindPedestrian
)

// highwayKind maps a highway tag value to a RoadKind for car-accessible ways.
var highwayKind = map[string]RoadKind{
	"motorway":       KindMotorway,
	"motorway_link":  KindMotorway,
	"trunk":          KindTrunk,
	"trunk_link":     KindTrunk,
	"primary":        KindPrimary,
	"primary_link":   KindPrimary,
	"secondary":      KindSecondary,
	"secondary_link": KindSecondary,
	"tertiary":       KindTertiary,
	"tertiary_link":  KindTertiary,
	"unclassified":   KindUnclassified,
	"residential":    KindResidential,
	"living_street":  KindLivingStreet,
	"service":        KindService,
}

// nonDrivingHighway lists highway values that never carry motor traffic and
// are not kept as filtered roads either (spec.md §4.1 step 2's exclusion
// set) — distinct from highway=pedestrian, which IS kept (as a
// WalkCycleOnly-filtered road) so the floodfill/router can reason about it.
var nonDrivingHighway = map[string]bool{
	"cycleway":     true,
	"footway":      true,
	"steps":        true,
	"path":         true,
	"track":        true,
	"corridor":     true,
	"proposed":     true,
	"construction": true,
}

// ClassifyHighway returns the RoadKind for a way's tags, and whether the way
// should be kept as a Road at all (either genuinely drivable, or structurally
// present but motor-blocked, like highway=pedestrian or a bus gate).
func ClassifyHighway(tags osm.Tags) (kind RoadKind, driveable bool) {
	hw := tags.Find("highway")
	if hw == "" || nonDrivingHighway[hw] {
		return KindIgnore, false
	}
	if tags.Find("area") == "yes" {
		return KindIgnore, false
	}
	if hw == "pedestrian" {
		return KindPedestrian, true
	}
	if IsBusGate(tags) {
		return KindService, true
	}
	k, ok := highwayKind[hw]
	if !ok {
		return KindIgnore, false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return KindIgnore, false
	}
	if tags.Find("motor_vehicle") == "no" {
		return KindIgnore, false
	}
	return k, true
}

// IsBusGate reports whether a way's tags describe a bus gate: motor traffic
// excluded via access=no/motor_vehicle=no, but explicitly open to buses.
// Grounded on spec.md §4.1 step 9's "access=no ∨ motor_vehicle=no with
// bus=yes" rule.
func IsBusGate(tags osm.Tags) bool {
	blocked := tags.Find("access") == "no" || tags.Find("motor_vehicle") == "no"
	return blocked && tags.Find("bus") == "yes"
}

// IsService reports whether a RoadKind is a service road, used by cell
// floodfill's "hide unimportant cells" heuristic.
func (k RoadKind) IsService() bool { return k == KindService }

// IsMainRoad reports whether a RoadKind falls in the
// motorway/trunk/primary/secondary/tertiary class set that defaults to
// Road.IsMainRoad = true and takes the router's main-road penalty.
func (k RoadKind) IsMainRoad() bool {
	switch k {
	case KindMotorway, KindTrunk, KindPrimary, KindSecondary, KindTertiary:
		return true
	default:
		return false
	}
}

// SeveranceKind categorizes a physical barrier that a neighbourhood boundary
// is typically drawn along: a trunk/motorway road, a railway, or a waterway.
// neighbourhood.New does not exclude them by this kind: a severance road
// lying wholly inside a boundary is counted among its interior_roads.
type SeveranceKind int

const (
	NotSeverance SeveranceKind = iota
	SeveranceMotorway
	SeveranceRailway
	SeveranceWaterway
)

// ClassifySeverance inspects a way's tags (highway, railway, waterway) and
// reports whether it forms a severance feature, independent of whether it
// is also drivable (a trunk road is both).
func ClassifySeverance(tags osm.Tags) SeveranceKind {
	if k, _ := ClassifyHighway(tags); k == KindMotorway || k == KindTrunk {
		return SeveranceMotorway
	}
	if rw := tags.Find("railway"); rw == "rail" || rw == "light_rail" || rw == "subway" {
		return SeveranceRailway
	}
	if ww := tags.Find("waterway"); ww == "river" || ww == "canal" {
		return SeveranceWaterway
	}
	return NotSeverance
}

// poiTagKeys lists the tag keys whose presence marks a node as a point of
// interest worth surfacing in boundary/demand summaries.
var poiTagKeys = []string{"shop", "amenity", "leisure", "tourism", "office"}

// IsPOI reports whether a node's tags mark it as a point of interest.
func IsPOI(tags osm.Tags) bool {
	for _, k := range poiTagKeys {
		if tags.Find(k) != "" {
			return true
		}
	}
	return false
}

// defaultSpeedKMH gives a fallback free-flow speed in km/h per RoadKind,
// used when a way carries no maxspeed tag. Values follow typical UK/SG
// urban defaults, matching the speeds the original Rust backend's traffic
// model assumes when a speed limit is absent.
var defaultSpeedKMH = map[RoadKind]float64{
	KindMotorway:     100,
	KindTrunk:        80,
	KindPrimary:      50,
	KindSecondary:    50,
	KindTertiary:     40,
	KindResidential:  30,
	KindLivingStreet: 15,
	KindService:      15,
	KindUnclassified: 40,
}

// SpeedKMH returns the way's tagged maxspeed if present and parseable,
// otherwise the RoadKind's default.
func SpeedKMH(tags osm.Tags, kind RoadKind) float64 {
	if ms := tags.Find("maxspeed"); ms != "" {
		if v, ok := parseMaxspeed(ms); ok {
			return v
		}
	}
	if v, ok := defaultSpeedKMH[kind]; ok {
		return v
	}
	return 30
}

func parseMaxspeed(s string) (float64, bool) {
	var v float64
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		v = v*10 + float64(s[i]-'0')
	}
	return v, true
}

// DirectionFlags returns (forward, backward) travel permissions based on
// highway type and oneway tags.
func DirectionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		forward = false
		backward = false
	}

	return forward, backward
}

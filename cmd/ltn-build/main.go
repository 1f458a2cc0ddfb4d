// Command ltn-build ingests an OSM extract into a serialized MapModel,
// the one-time preprocessing step every ltn-server instance loads from.
// Ported from azybler-map_router/cmd/preprocess/main.go, generalized from a
// CH-graph-only binary to the fuller MapModel format (road/intersection
// metadata, edit overlay) pkg/mapmodel/binary.go writes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/azybler/ltn/internal/appconfig"
	"github.com/azybler/ltn/internal/logging"
	"github.com/azybler/ltn/pkg/mapmodel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ltn-build:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	osmPath := flag.String("osm", "", "path to .osm.pbf extract (overrides config)")
	outPath := flag.String("out", "", "path to write the MapModel binary to (overrides config)")
	collapseDogLegs := flag.Bool("collapse-dog-legs", true, "collapse paired 3-way intersections into one 4-way junction")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	osmFile := cfg.StudyArea.OSMPath
	if *osmPath != "" {
		osmFile = *osmPath
	}
	graphOut := cfg.StudyArea.GraphPath
	if *outPath != "" {
		graphOut = *outPath
	}
	if osmFile == "" || graphOut == "" {
		return fmt.Errorf("both -osm and -out (or STUDY_AREA_OSM_PATH / STUDY_AREA_GRAPH_PATH in config) are required")
	}

	log.Info("reading OSM extract", zap.String("path", osmFile))
	f, err := os.Open(osmFile)
	if err != nil {
		return fmt.Errorf("open osm extract: %w", err)
	}
	defer f.Close()

	m, err := mapmodel.Build(context.Background(), f, mapmodel.BuildOptions{
		CollapseDogLegs: *collapseDogLegs,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("build map model: %w", err)
	}
	log.Info("map model built",
		zap.Int("roads", len(m.Roads)),
		zap.Int("intersections", m.NumIntersections()),
	)

	if err := mapmodel.WriteBinary(graphOut, m); err != nil {
		return fmt.Errorf("write map model: %w", err)
	}
	log.Info("map model written", zap.String("path", graphOut))
	return nil
}

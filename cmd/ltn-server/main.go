// Command ltn-server loads a prebuilt MapModel and serves the Exposed API
// (spec.md §6) over HTTP. Ported from azybler-map_router/cmd/server/main.go,
// generalized from the teacher's CH-graph-only load path to pkg/mapmodel's
// fuller binary format and the rest of this module's core packages.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/azybler/ltn/internal/appconfig"
	"github.com/azybler/ltn/internal/logging"
	"github.com/azybler/ltn/pkg/api"
	"github.com/azybler/ltn/pkg/cache"
	"github.com/azybler/ltn/pkg/contextstore"
	"github.com/azybler/ltn/pkg/mapmodel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ltn-server:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	if cfg.StudyArea.GraphPath == "" {
		return fmt.Errorf("STUDY_AREA_GRAPH_PATH is required")
	}
	log.Info("loading map model", zap.String("path", cfg.StudyArea.GraphPath))
	m, err := mapmodel.ReadBinary(cfg.StudyArea.GraphPath)
	if err != nil {
		return fmt.Errorf("read map model: %w", err)
	}
	m.MainRoadPenalty = cfg.Router.MainRoadPenalty
	log.Info("map model loaded",
		zap.Int("roads", len(m.Roads)),
		zap.Int("intersections", m.NumIntersections()),
	)

	ctx := context.Background()

	var store *contextstore.Store
	if cfg.Database.Host != "" {
		store, err = contextstore.Open(ctx, cfg.Database, log)
		if err != nil {
			log.Warn("context store unavailable, boundary stats will be disabled", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	var ch *cache.Cache
	if cfg.Cache.Host != "" {
		ch, err = cache.Open(ctx, cfg.Cache, log)
		if err != nil {
			log.Warn("recalculation cache unavailable, falling back to always-compute", zap.Error(err))
			ch = nil
		} else {
			defer ch.Close()
		}
	}

	handlers := api.NewHandlers(m, log, store, ch)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverCfg := api.ServerConfig{
		Addr:          addr,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		CORSOrigin:    cfg.Server.CORSOrigin,
	}
	srv := api.NewServer(serverCfg, handlers, log)
	return api.ListenAndServe(srv, log)
}

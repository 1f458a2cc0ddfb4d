// Package contextstore persists the population/census "context data" and
// demand-zone linkage that spec.md §1 calls out as an external
// collaborator: it is the collaborator's storage, not core analysis. A
// Store backs Neighbourhood.Stats and can supply DemandModel zones to
// pkg/demand at load time.
//
// Connection shape follows
// SoySergo-location_microservice/internal/repository/postgresosm/db.go:
// sqlx over the pgx/v5 stdlib driver, registered under the "pgx" name.
package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/azybler/ltn/internal/appconfig"
)

// PopulationZone is one census/population polygon attached to a study
// area, as consumed by Neighbourhood.Stats.
type PopulationZone struct {
	ID           int64  `db:"id"`
	StudyAreaID  string `db:"study_area_id"`
	Name         string `db:"name"`
	Population   int    `db:"population"`
	AreaSqKm     float64 `db:"area_sq_km"`
	// GeometryLL is a JSON-encoded closed ring of [lat, lng] pairs in
	// WGS84 degrees (kept as plain JSON rather than PostGIS WKB/EWKB,
	// since the core's only geometry consumer is pkg/geo's planar math,
	// not a GIS engine).
	GeometryLL string `db:"geometry_ll"`
}

// Ring decodes GeometryLL into a slice of [lat, lng] pairs.
func (z PopulationZone) Ring() ([][2]float64, error) {
	var ring [][2]float64
	if err := json.Unmarshal([]byte(z.GeometryLL), &ring); err != nil {
		return nil, fmt.Errorf("contextstore: decode geometry for zone %d: %w", z.ID, err)
	}
	return ring, nil
}

// Store wraps both a *sqlx.DB (structured row scanning, pq.Array-typed
// columns) and a *pgxpool.Pool (bulk/streaming access), matching the
// dual-handle shape the domain stack names in SPEC_FULL.md §C.
type Store struct {
	db     *sqlx.DB
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to the context database described by cfg.
func Open(ctx context.Context, cfg appconfig.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("contextstore: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("contextstore: parse pool config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("contextstore: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("contextstore: ping: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("context store connected", zap.String("host", cfg.Host), zap.String("database", cfg.DBName))
	return &Store{db: db, pool: pool, logger: logger}, nil
}

// Close releases both handles.
func (s *Store) Close() {
	s.pool.Close()
	_ = s.db.Close()
}

// PopulationZonesForStudyArea returns every population zone attached to a
// study area, ordered by id for determinism (§5's "iteration order of
// mappings is deterministic" carried into every query result this core
// consumes).
func (s *Store) PopulationZonesForStudyArea(ctx context.Context, studyAreaID string) ([]PopulationZone, error) {
	var zones []PopulationZone
	const q = `
		SELECT id, study_area_id, name, population, area_sq_km, geometry_ll
		FROM population_zones
		WHERE study_area_id = $1
		ORDER BY id`
	if err := s.db.SelectContext(ctx, &zones, q, studyAreaID); err != nil {
		return nil, fmt.Errorf("contextstore: select population zones: %w", err)
	}
	return zones, nil
}

// LinkedDemandZoneIDs returns the DemandModel zone indices a population
// zone has been manually associated with (an editor may merge several
// small census zones into one coarser demand zone); bigint[] column
// scanned via lib/pq's Array adapter over the database/sql path.
func (s *Store) LinkedDemandZoneIDs(ctx context.Context, populationZoneID int64) ([]int64, error) {
	var ids pq.Int64Array
	const q = `SELECT demand_zone_ids FROM population_zones WHERE id = $1`
	if err := s.db.GetContext(ctx, &ids, q, populationZoneID); err != nil {
		return nil, fmt.Errorf("contextstore: select linked demand zones: %w", err)
	}
	return []int64(ids), nil
}

// UpsertPopulationZone inserts or updates a population zone's attributes,
// using the pool for a single-statement write.
func (s *Store) UpsertPopulationZone(ctx context.Context, z PopulationZone) (int64, error) {
	const q = `
		INSERT INTO population_zones (study_area_id, name, population, area_sq_km, geometry_ll)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (study_area_id, name) DO UPDATE
			SET population = EXCLUDED.population,
				area_sq_km = EXCLUDED.area_sq_km,
				geometry_ll = EXCLUDED.geometry_ll
		RETURNING id`
	var id int64
	row := s.pool.QueryRow(ctx, q, z.StudyAreaID, z.Name, z.Population, z.AreaSqKm, z.GeometryLL)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("contextstore: upsert population zone: %w", err)
	}
	return id, nil
}

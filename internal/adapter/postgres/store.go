package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertPollutantSQL = `INSERT INTO pollutants (name, unit) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING`

	selectPollutantIDsSQL = `SELECT name, id FROM pollutants WHERE name = ANY($1)`

	insertStationSQL = `INSERT INTO stations (station_id, name, latitude, longitude, easting, northing, elevation)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (station_id) DO NOTHING
RETURNING id`

	selectStationIDSQL = `SELECT id FROM stations WHERE station_id = $1`

	insertMeasurementSQL = `INSERT INTO measurements (station_ref, pollutant_ref, value, measured_at)
VALUES ($1, $2, $3, $4)`
)

// Store persists merged aggregates to Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects a pgx pool and verifies it with a ping.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Persist writes an aggregate in two phases. The pollutant dimension rows are
// ensured and committed in their own transaction first; a failure there
// aborts the whole call. Each station and its fact rows are then written in a
// separate transaction, so a failing station is rolled back and logged while
// the others proceed. Existing stations are never updated.
func (s *Store) Persist(ctx context.Context, agg *domain.Aggregate) (domain.PersistSummary, error) {
	var summary domain.PersistSummary

	pollutantIDs, err := s.ensurePollutants(ctx, agg.Pollutants())
	if err != nil {
		return summary, err
	}
	summary.PollutantsEnsured = len(pollutantIDs)

	for _, entry := range agg.Entries() {
		inserted, rows, err := s.persistUnit(ctx, entry, pollutantIDs)
		if err != nil {
			summary.UnitsFailed++
			s.logger.Error("station unit rolled back", "station_id", entry.Station.ID, "error", err)
			continue
		}
		if inserted {
			summary.StationsInserted++
		}
		summary.MeasurementsInserted += rows
	}

	s.logger.Info("aggregate persisted",
		"stations_inserted", summary.StationsInserted,
		"measurements_inserted", summary.MeasurementsInserted,
		"units_failed", summary.UnitsFailed,
	)
	return summary, nil
}

func (s *Store) ensurePollutants(ctx context.Context, pollutants []domain.Pollutant) (map[domain.Pollutant]int32, error) {
	ids := make(map[domain.Pollutant]int32, len(pollutants))
	if len(pollutants) == 0 {
		return ids, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin pollutant tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	names := make([]string, len(pollutants))
	for i, p := range pollutants {
		d := p.Dimension()
		batch.Queue(insertPollutantSQL, string(d.Name), d.Unit)
		names[i] = string(p)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return nil, fmt.Errorf("insert pollutants: %w", err)
	}

	rows, err := tx.Query(ctx, selectPollutantIDsSQL, names)
	if err != nil {
		return nil, fmt.Errorf("select pollutant ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var id int32
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scan pollutant id: %w", err)
		}
		ids[domain.Pollutant(name)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select pollutant ids: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pollutants: %w", err)
	}
	return ids, nil
}

// persistUnit inserts one station if absent and all of its fact rows.
func (s *Store) persistUnit(ctx context.Context, entry domain.StationEntry, pollutantIDs map[domain.Pollutant]int32) (bool, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("begin station tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	st := entry.Station
	inserted := true
	var stationRef int64
	err = tx.QueryRow(ctx, insertStationSQL, stationArgs(st)...).Scan(&stationRef)
	if errors.Is(err, pgx.ErrNoRows) {
		inserted = false
		err = tx.QueryRow(ctx, selectStationIDSQL, st.ID).Scan(&stationRef)
	}
	if err != nil {
		return false, 0, fmt.Errorf("insert station: %w", err)
	}

	facts := entry.FactRows()
	batch := &pgx.Batch{}
	for _, f := range facts {
		ref, ok := pollutantIDs[f.Pollutant]
		if !ok {
			return false, 0, fmt.Errorf("pollutant %s has no dimension row", f.Pollutant)
		}
		batch.Queue(insertMeasurementSQL, stationRef, ref, f.Value, f.MeasuredAt)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return false, 0, fmt.Errorf("insert measurements: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit station: %w", err)
	}
	return inserted, len(facts), nil
}

func stationArgs(st domain.StationRecord) []any {
	return []any{st.ID, st.Name, st.Latitude, st.Longitude, st.Easting, st.Northing, st.ElevationMeters}
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	res := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			_ = res.Close()
			return err
		}
	}
	return res.Close()
}

const statsSQL = `SELECT
    (SELECT COUNT(*) FROM stations),
    (SELECT COUNT(*) FROM pollutants),
    (SELECT COUNT(*) FROM measurements)`

// Stats returns the current row counts.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var st domain.StoreStats
	if err := s.pool.QueryRow(ctx, statsSQL).Scan(&st.Stations, &st.Pollutants, &st.Measurements); err != nil {
		return domain.StoreStats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS station_readings (
		id TEXT PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		observed_at INTEGER NOT NULL,
		wind_sustained_kts REAL,
		wind_gust_kts REAL,
		wind_direction_deg REAL,
		wind_observed_at INTEGER,
		swell_height_ft REAL,
		swell_period_sec REAL,
		swell_observed_at INTEGER,
		air_temp_c REAL,
		water_temp_c REAL
	);
	CREATE INDEX IF NOT EXISTS idx_station_readings_coords ON station_readings(latitude, longitude);
`

// Column updates keep the newer reading of each kind. Temperatures follow the
// newest row, NULLs included. SQLite evaluates every SET expression against
// the pre-update row.
const upsertSQL = `
	INSERT INTO station_readings (
		id, latitude, longitude, observed_at,
		wind_sustained_kts, wind_gust_kts, wind_direction_deg, wind_observed_at,
		swell_height_ft, swell_period_sec, swell_observed_at,
		air_temp_c, water_temp_c
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		latitude = CASE WHEN excluded.observed_at >= observed_at THEN excluded.latitude ELSE latitude END,
		longitude = CASE WHEN excluded.observed_at >= observed_at THEN excluded.longitude ELSE longitude END,
		observed_at = MAX(excluded.observed_at, observed_at),
		wind_sustained_kts = CASE WHEN ` + newerWind + ` THEN excluded.wind_sustained_kts ELSE wind_sustained_kts END,
		wind_gust_kts = CASE WHEN ` + newerWind + ` THEN excluded.wind_gust_kts ELSE wind_gust_kts END,
		wind_direction_deg = CASE WHEN ` + newerWind + ` THEN excluded.wind_direction_deg ELSE wind_direction_deg END,
		wind_observed_at = CASE WHEN ` + newerWind + ` THEN excluded.wind_observed_at ELSE wind_observed_at END,
		swell_height_ft = CASE WHEN ` + newerSwell + ` THEN excluded.swell_height_ft ELSE swell_height_ft END,
		swell_period_sec = CASE WHEN ` + newerSwell + ` THEN excluded.swell_period_sec ELSE swell_period_sec END,
		swell_observed_at = CASE WHEN ` + newerSwell + ` THEN excluded.swell_observed_at ELSE swell_observed_at END,
		air_temp_c = CASE WHEN excluded.observed_at >= observed_at THEN excluded.air_temp_c ELSE air_temp_c END,
		water_temp_c = CASE WHEN excluded.observed_at >= observed_at THEN excluded.water_temp_c ELSE water_temp_c END
`

const (
	newerWind  = `excluded.wind_observed_at IS NOT NULL AND (wind_observed_at IS NULL OR excluded.wind_observed_at >= wind_observed_at)`
	newerSwell = `excluded.swell_observed_at IS NOT NULL AND (swell_observed_at IS NULL OR excluded.swell_observed_at >= swell_observed_at)`
)

const selectColumns = `
	SELECT id, latitude, longitude, observed_at,
		wind_sustained_kts, wind_gust_kts, wind_direction_deg, wind_observed_at,
		swell_height_ft, swell_period_sec, swell_observed_at,
		air_temp_c, water_temp_c
	FROM station_readings`

// SQLiteStore persists latest observations in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		_, _ = db.Exec("PRAGMA journal_mode=WAL")
		_, _ = db.Exec("PRAGMA synchronous=NORMAL")
	}

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating station_readings table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Apply upserts a batch of observations in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, batch []domain.Observation) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range batch {
		if _, err := stmt.ExecContext(ctx, upsertArgs(obs)...); err != nil {
			return fmt.Errorf("upserting station %s: %w", obs.StationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Latest returns the stored observation for a station.
func (s *SQLiteStore) Latest(ctx context.Context, stationID string) (domain.Observation, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", stationID)
	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, false, nil
	}
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("querying station %s: %w", stationID, err)
	}
	return obs, true, nil
}

// Stations lists every known station per kind with its validity at now.
func (s *SQLiteStore) Stations(ctx context.Context, now time.Time, maxAge time.Duration) ([]domain.SensorStation, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	var latest []domain.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning station: %w", err)
		}
		latest = append(latest, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stations: %w", err)
	}
	return stationsFromLatest(latest, now, maxAge), nil
}

func upsertArgs(obs domain.Observation) []any {
	var (
		sustained, gust, dir sql.NullFloat64
		height, period       sql.NullFloat64
		windAt, swellAt      sql.NullInt64
	)
	if w := obs.Wind; w != nil {
		sustained = sql.NullFloat64{Float64: w.SustainedKts, Valid: true}
		dir = sql.NullFloat64{Float64: w.DirectionDeg, Valid: true}
		windAt = unixSeconds(w.Timestamp)
		if g, ok := w.Gust(); ok {
			gust = sql.NullFloat64{Float64: g, Valid: true}
		}
	}
	if sw := obs.Swell; sw != nil {
		height = sql.NullFloat64{Float64: sw.HeightFt, Valid: true}
		period = sql.NullFloat64{Float64: sw.PeriodSec, Valid: true}
		swellAt = unixSeconds(sw.Timestamp)
	}
	return []any{
		obs.StationID, obs.Location.Lat, obs.Location.Lon, obs.ObservedAt.Unix(),
		sustained, gust, dir, windAt,
		height, period, swellAt,
		nullable(obs.AirTempC), nullable(obs.WaterTempC),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (domain.Observation, error) {
	var (
		obs                          domain.Observation
		lat, lon                     float64
		observedAt                   int64
		sustained, gust, dir         sql.NullFloat64
		windAt, swellAt              sql.NullInt64
		height, period, airT, waterT sql.NullFloat64
	)
	if err := row.Scan(&obs.StationID, &lat, &lon, &observedAt,
		&sustained, &gust, &dir, &windAt,
		&height, &period, &swellAt,
		&airT, &waterT); err != nil {
		return domain.Observation{}, err
	}

	obs.Location = geo.GeoPoint{Lat: lat, Lon: lon}
	obs.ObservedAt = time.Unix(observedAt, 0).UTC()
	if sustained.Valid && dir.Valid && windAt.Valid {
		obs.Wind = &domain.WindReading{
			SustainedKts: sustained.Float64,
			DirectionDeg: dir.Float64,
			Timestamp:    time.Unix(windAt.Int64, 0).UTC(),
		}
		if gust.Valid {
			g := gust.Float64
			obs.Wind.GustKts = &g
		}
	}
	if height.Valid && swellAt.Valid {
		obs.Swell = &domain.SwellReading{
			HeightFt:  height.Float64,
			PeriodSec: period.Float64,
			Timestamp: time.Unix(swellAt.Int64, 0).UTC(),
		}
	}
	if airT.Valid {
		v := airT.Float64
		obs.AirTempC = &v
	}
	if waterT.Valid {
		v := waterT.Float64
		obs.WaterTempC = &v
	}
	return obs, nil
}

func unixSeconds(t time.Time) sql.NullInt64 {
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

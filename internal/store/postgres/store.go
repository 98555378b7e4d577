// Package postgres provides the pgx-backed metadata store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// uniqueViolation is the Postgres error code raised on duplicate keys.
const uniqueViolation = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements cctv.MetadataStore on top of pgxpool.
type Store struct {
	pool pgxPool
}

// New creates a Store from the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the schema when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS highways (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			highway_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cameras (
			camera_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			location_id TEXT NOT NULL,
			highway_code TEXT NOT NULL REFERENCES highways(code)
		)`,
		`CREATE TABLE IF NOT EXISTS camera_images (
			image_path TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL REFERENCES cameras(camera_id),
			capture_time TIMESTAMPTZ NOT NULL,
			file_size BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS camera_images_camera_time_idx
			ON camera_images (camera_id, capture_time DESC)`,
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// UpsertHighway creates or refreshes a highway row keyed by code.
func (s *Store) UpsertHighway(ctx context.Context, h cctv.Highway) error {
	query := `
		INSERT INTO highways (code, name, highway_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, highway_id = EXCLUDED.highway_id;
	`
	if _, err := s.pool.Exec(ctx, query, h.Code, h.Name, h.HighwayID); err != nil {
		return fmt.Errorf("upsert highway %s: %w", h.Code, err)
	}
	return nil
}

// UpsertCamera creates or refreshes a camera row keyed by camera_id.
func (s *Store) UpsertCamera(ctx context.Context, c cctv.Camera) error {
	query := `
		INSERT INTO cameras (camera_id, name, location_id, highway_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (camera_id) DO UPDATE
		SET name = EXCLUDED.name,
			location_id = EXCLUDED.location_id,
			highway_code = EXCLUDED.highway_code;
	`
	if _, err := s.pool.Exec(ctx, query, c.CameraID, c.Name, c.LocationID, c.HighwayCode); err != nil {
		return fmt.Errorf("upsert camera %s: %w", c.CameraID, err)
	}
	return nil
}

// RecordImage inserts an image row, returning ErrDuplicateKey when the
// image path already exists.
func (s *Store) RecordImage(ctx context.Context, rec cctv.ImageRecord) error {
	query := `
		INSERT INTO camera_images (image_path, camera_id, capture_time, file_size)
		VALUES ($1, $2, $3, $4);
	`
	_, err := s.pool.Exec(ctx, query, rec.ImagePath, rec.CameraID, rec.CaptureTime, rec.FileSize)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", rec.ImagePath, cctv.ErrDuplicateKey)
		}
		return fmt.Errorf("record image %s: %w", rec.ImagePath, err)
	}
	return nil
}

// HasImage reports whether an image path is already recorded.
func (s *Store) HasImage(ctx context.Context, imagePath string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM camera_images WHERE image_path = $1);`
	var found bool
	if err := s.pool.QueryRow(ctx, query, imagePath).Scan(&found); err != nil {
		return false, fmt.Errorf("check image %s: %w", imagePath, err)
	}
	return found, nil
}

// QueryImages returns matching images joined with camera and highway,
// newest first.
func (s *Store) QueryImages(ctx context.Context, q cctv.ImageQuery) ([]cctv.CapturedImage, error) {
	query := `
		SELECT c.camera_id, c.name, h.code, h.name, i.image_path, i.capture_time, i.file_size
		FROM camera_images i
		JOIN cameras c ON c.camera_id = i.camera_id
		JOIN highways h ON h.code = c.highway_code
		WHERE ($1::text IS NULL OR c.camera_id = $1)
			AND ($2::text IS NULL OR h.code = $2)
			AND ($3::timestamptz IS NULL OR i.capture_time >= $3)
			AND ($4::timestamptz IS NULL OR i.capture_time <= $4)
		ORDER BY i.capture_time DESC
		LIMIT $5;
	`
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, query,
		nullableString(q.CameraID),
		nullableString(q.HighwayCode),
		q.From,
		q.To,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var images []cctv.CapturedImage
	for rows.Next() {
		var img cctv.CapturedImage
		if err := rows.Scan(
			&img.CameraID,
			&img.CameraName,
			&img.HighwayCode,
			&img.HighwayName,
			&img.ImagePath,
			&img.CaptureTime,
			&img.FileSize,
		); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}

// ListHighways returns all highways sorted by code.
func (s *Store) ListHighways(ctx context.Context) ([]cctv.Highway, error) {
	query := `SELECT code, name, highway_id FROM highways ORDER BY code;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list highways: %w", err)
	}
	defer rows.Close()

	var highways []cctv.Highway
	for rows.Next() {
		var h cctv.Highway
		if err := rows.Scan(&h.Code, &h.Name, &h.HighwayID); err != nil {
			return nil, fmt.Errorf("scan highway row: %w", err)
		}
		highways = append(highways, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highway rows: %w", err)
	}
	return highways, nil
}

// GetHighway fetches one highway by code.
func (s *Store) GetHighway(ctx context.Context, code string) (cctv.Highway, error) {
	query := `SELECT code, name, highway_id FROM highways WHERE code = $1;`
	var h cctv.Highway
	err := s.pool.QueryRow(ctx, query, code).Scan(&h.Code, &h.Name, &h.HighwayID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cctv.Highway{}, fmt.Errorf("highway %s: %w", code, cctv.ErrNotFound)
		}
		return cctv.Highway{}, fmt.Errorf("get highway %s: %w", code, err)
	}
	return h, nil
}

// ListCameras returns cameras, optionally filtered by highway code.
func (s *Store) ListCameras(ctx context.Context, highwayCode string) ([]cctv.Camera, error) {
	query := `
		SELECT camera_id, name, location_id, highway_code
		FROM cameras
		WHERE ($1::text IS NULL OR highway_code = $1)
		ORDER BY camera_id;
	`
	rows, err := s.pool.Query(ctx, query, nullableString(highwayCode))
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []cctv.Camera
	for rows.Next() {
		var c cctv.Camera
		if err := rows.Scan(&c.CameraID, &c.Name, &c.LocationID, &c.HighwayCode); err != nil {
			return nil, fmt.Errorf("scan camera row: %w", err)
		}
		cameras = append(cameras, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate camera rows: %w", err)
	}
	return cameras, nil
}

// CountImages returns the total number of recorded images.
func (s *Store) CountImages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM camera_images;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestUpsertHighwayExecutesConflictUpdate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO highways").
		WithArgs("DUKE", "L/raya Duta-Ulu Kelang (DUKE)", "E33").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertHighway(context.Background(), cctv.Highway{
		Code:      "DUKE",
		Name:      "L/raya Duta-Ulu Kelang (DUKE)",
		HighwayID: "E33",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordImageMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	capture := time.Date(2025, 3, 26, 13, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO camera_images").
		WithArgs("DUKE_DUKE-1_20250326_133000.jpg", "DUKE-1", capture, int64(4096)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.RecordImage(context.Background(), cctv.ImageRecord{
		CameraID:    "DUKE-1",
		ImagePath:   "DUKE_DUKE-1_20250326_133000.jpg",
		CaptureTime: capture,
		FileSize:    4096,
	})
	require.True(t, errors.Is(err, cctv.ErrDuplicateKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasImageScansExists(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("DUKE_DUKE-1_20250326_133000.jpg").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := store.HasImage(context.Background(), "DUKE_DUKE-1_20250326_133000.jpg")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryImagesScansJoinedRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	capture := time.Date(2025, 3, 26, 13, 30, 0, 0, time.UTC)
	from := capture.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{
		"camera_id", "camera_name", "highway_code", "highway_name",
		"image_path", "capture_time", "file_size",
	}).AddRow(
		"DUKE-1", "Sentul Pasar", "DUKE", "L/raya Duta-Ulu Kelang (DUKE)",
		"DUKE_DUKE-1_20250326_133000.jpg", capture, int64(4096),
	)

	cameraID := "DUKE-1"
	mock.ExpectQuery("SELECT c.camera_id").
		WithArgs(&cameraID, (*string)(nil), &from, (*time.Time)(nil), 50).
		WillReturnRows(rows)

	images, err := store.QueryImages(context.Background(), cctv.ImageQuery{
		CameraID: "DUKE-1",
		From:     &from,
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "Sentul Pasar", images[0].CameraName)
	require.Equal(t, int64(4096), images[0].FileSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHighwayNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT code, name, highway_id FROM highways").
		WithArgs("ZZZ").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetHighway(context.Background(), "ZZZ")
	require.True(t, errors.Is(err, cctv.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountImages(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := store.CountImages(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	for i := 0; i < 4; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

type closeCountingPool struct {
	pgxPool
	closes int
}

func (p *closeCountingPool) Close() { p.closes++ }

func TestCloseReleasesPool(t *testing.T) {
	t.Parallel()

	pool := &closeCountingPool{}
	store, err := NewWithPool(pool)
	require.NoError(t, err)

	store.Close()
	require.Equal(t, 1, pool.closes)

	var nilStore *Store
	require.NotPanics(t, func() { nilStore.Close() })
}

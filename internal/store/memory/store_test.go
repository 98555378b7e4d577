package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()
	require.NoError(t, s.UpsertHighway(ctx, cctv.Highway{Code: "DUKE", Name: "Duta-Ulu Kelang", HighwayID: "E33"}))
	require.NoError(t, s.UpsertHighway(ctx, cctv.Highway{Code: "LDP", Name: "Damansara Puchong", HighwayID: "E11"}))
	require.NoError(t, s.UpsertCamera(ctx, cctv.Camera{CameraID: "DUKE-1", Name: "Sentul Pasar", LocationID: "DUKE", HighwayCode: "DUKE"}))
	require.NoError(t, s.UpsertCamera(ctx, cctv.Camera{CameraID: "LDP-1", Name: "Kg Kayu Ara", LocationID: "LDP", HighwayCode: "LDP"}))
	return s
}

func TestRecordImageDuplicate(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	rec := cctv.ImageRecord{
		CameraID:    "DUKE-1",
		ImagePath:   "DUKE_DUKE-1_20250326_133000.jpg",
		CaptureTime: time.Date(2025, 3, 26, 13, 30, 0, 0, time.Local),
		FileSize:    4096,
	}
	require.NoError(t, s.RecordImage(ctx, rec))

	err := s.RecordImage(ctx, rec)
	require.Error(t, err)
	require.True(t, errors.Is(err, cctv.ErrDuplicateKey))

	found, err := s.HasImage(ctx, rec.ImagePath)
	require.NoError(t, err)
	require.True(t, found)

	count, err := s.CountImages(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRecordImageUnknownCamera(t *testing.T) {
	t.Parallel()

	s := seed(t)
	err := s.RecordImage(context.Background(), cctv.ImageRecord{
		CameraID:  "GHOST-9",
		ImagePath: "GHOST_GHOST-9_20250326_133000.jpg",
	})
	require.True(t, errors.Is(err, cctv.ErrNotFound))
}

func TestQueryImagesFiltersAndOrder(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 26, 12, 0, 0, 0, time.Local)
	for i, cam := range []string{"DUKE-1", "LDP-1", "DUKE-1"} {
		require.NoError(t, s.RecordImage(ctx, cctv.ImageRecord{
			CameraID:    cam,
			ImagePath:   cam + base.Add(time.Duration(i)*time.Hour).Format("_20060102_150405.jpg"),
			CaptureTime: base.Add(time.Duration(i) * time.Hour),
			FileSize:    100,
		}))
	}

	all, err := s.QueryImages(ctx, cctv.ImageQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].CaptureTime.After(all[1].CaptureTime))

	duke, err := s.QueryImages(ctx, cctv.ImageQuery{HighwayCode: "DUKE"})
	require.NoError(t, err)
	require.Len(t, duke, 2)
	require.Equal(t, "Duta-Ulu Kelang", duke[0].HighwayName)

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	window, err := s.QueryImages(ctx, cctv.ImageQuery{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, "LDP-1", window[0].CameraID)

	limited, err := s.QueryImages(ctx, cctv.ImageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestGetHighwayNotFound(t *testing.T) {
	t.Parallel()

	s := seed(t)
	_, err := s.GetHighway(context.Background(), "ZZZ")
	require.True(t, errors.Is(err, cctv.ErrNotFound))

	_, err = s.ListCameras(context.Background(), "ZZZ")
	require.True(t, errors.Is(err, cctv.ErrNotFound))
}

func TestUpsertCameraReplaces(t *testing.T) {
	t.Parallel()

	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertCamera(ctx, cctv.Camera{CameraID: "DUKE-1", Name: "Renamed", LocationID: "DUKE", HighwayCode: "DUKE"}))
	cams, err := s.ListCameras(ctx, "DUKE")
	require.NoError(t, err)
	require.Len(t, cams, 1)
	require.Equal(t, "Renamed", cams[0].Name)
}

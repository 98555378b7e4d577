package cctv

import (
	"context"
	"time"
)

// CatalogFetcher turns one highway's upstream feed into snapshot candidates.
// Any concrete strategy (HTML parse, JSON API) implements this, decoupling
// the pipeline from upstream format changes.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, highwayCode string) ([]CameraSnapshot, error)
}

// MetadataStore is the external record store the pipeline and read path
// consume. Implementations must return ErrDuplicateKey from RecordImage
// when the image path already exists and ErrNotFound from the Get methods.
type MetadataStore interface {
	UpsertHighway(ctx context.Context, h Highway) error
	UpsertCamera(ctx context.Context, c Camera) error
	RecordImage(ctx context.Context, rec ImageRecord) error
	HasImage(ctx context.Context, imagePath string) (bool, error)
	QueryImages(ctx context.Context, q ImageQuery) ([]CapturedImage, error)
	ListHighways(ctx context.Context) ([]Highway, error)
	GetHighway(ctx context.Context, code string) (Highway, error)
	ListCameras(ctx context.Context, highwayCode string) ([]Camera, error)
	CountImages(ctx context.Context) (int64, error)
}

// ImageStore persists raw snapshot bytes under a derived storage key.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Stats(ctx context.Context) (ImageStoreStats, error)
}

// ImageStoreStats feeds the health endpoint.
type ImageStoreStats struct {
	Dir        string
	Exists     bool
	IsDir      bool
	ImageCount int64
}

// Publisher emits a notification for each newly archived capture.
type Publisher interface {
	Publish(ctx context.Context, event CaptureEvent) error
	Close() error
}

// CaptureEvent is the payload published per archived image.
type CaptureEvent struct {
	ID          string    `json:"id"`
	CameraID    string    `json:"camera_id"`
	HighwayCode string    `json:"highway_code"`
	ImagePath   string    `json:"image_path"`
	CaptureTime time.Time `json:"capture_time"`
	FileSize    int64     `json:"file_size"`
}

// Clock abstracts time.Now so cycle timing and "today" resolution are
// testable.
type Clock interface {
	Now() time.Time
}

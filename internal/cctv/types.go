// Package cctv defines core types shared across subsystems.
package cctv

import (
	"time"
)

// Highway is a named road network segment, the top-level grouping for cameras.
type Highway struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	HighwayID string `json:"highway_id"`
}

// Camera is a single fixed CCTV capture point belonging to one highway.
type Camera struct {
	CameraID    string `json:"camera_id"`
	Name        string `json:"name"`
	LocationID  string `json:"location_id"`
	HighwayCode string `json:"highway_code"`
}

// CameraSnapshot is one upstream catalog entry: a camera plus the image
// bytes it currently shows. ObservedAt is the scrape-observed time used as
// the capture time when upstream reports none.
type CameraSnapshot struct {
	HighwayCode string
	CameraID    string
	Name        string
	Image       []byte
	ObservedAt  time.Time
}

// ImageRecord is the metadata persisted for one archived snapshot.
type ImageRecord struct {
	CameraID    string    `json:"camera_id"`
	ImagePath   string    `json:"image_path"`
	CaptureTime time.Time `json:"capture_time"`
	FileSize    int64     `json:"file_size"`
}

// CapturedImage is an ImageRecord joined with its camera and highway,
// the shape returned by queries and the read API.
type CapturedImage struct {
	CameraID    string    `json:"camera_id"`
	CameraName  string    `json:"camera_name"`
	HighwayCode string    `json:"highway_code"`
	HighwayName string    `json:"highway_name"`
	ImagePath   string    `json:"image_url"`
	CaptureTime time.Time `json:"timestamp"`
	FileSize    int64     `json:"file_size"`
}

// FetchStatus tracks a camera's progress through one fetch attempt cycle.
type FetchStatus string

// Fetch status values carried on per-camera outcomes.
const (
	FetchPending    FetchStatus = "pending"
	FetchAttempting FetchStatus = "attempting"
	FetchSucceeded  FetchStatus = "succeeded"
	FetchRetrying   FetchStatus = "retrying"
	FetchFailed     FetchStatus = "failed"
)

// CameraOutcome is the per-camera result of one scrape cycle.
type CameraOutcome struct {
	Status    FetchStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	Bytes     int64       `json:"bytes,omitempty"`
	Duplicate bool        `json:"duplicate,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// CycleSummary aggregates one run of the scheduled fetch across all cameras.
type CycleSummary struct {
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Succeeded  int                      `json:"succeeded"`
	Failed     int                      `json:"failed"`
	Skipped    int                      `json:"skipped"`
	PerCamera  map[string]CameraOutcome `json:"per_camera,omitempty"`
}

// ImageQuery filters stored images. A nil bound is unbounded on that side;
// CameraID and HighwayCode are optional filters; Limit caps the result.
type ImageQuery struct {
	CameraID    string
	HighwayCode string
	From        *time.Time
	To          *time.Time
	Limit       int
}

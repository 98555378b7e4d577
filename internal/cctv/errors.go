package cctv

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across store and query boundaries.
var (
	// ErrDuplicateKey means an image_path already exists. Expected during
	// dedupe, treated as a no-op skip rather than a failure.
	ErrDuplicateKey = errors.New("duplicate image path")

	// ErrNotFound means the requested highway, camera, or image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable means the metadata store could not be reached
	// after bounded retries.
	ErrStoreUnavailable = errors.New("metadata store unavailable")

	// ErrInvalidTimestamp means a client-supplied timestamp string matched
	// no supported shape or had out-of-range components.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// UpstreamFetchError is a transient failure talking to the camera catalog.
// It carries enough context to diagnose a failed cycle from logs alone.
type UpstreamFetchError struct {
	HighwayCode string
	CameraID    string
	Attempt     int
	Err         error
}

func (e *UpstreamFetchError) Error() string {
	if e.CameraID != "" {
		return fmt.Sprintf("upstream fetch failed for camera %s (highway %s, attempt %d): %v",
			e.CameraID, e.HighwayCode, e.Attempt, e.Err)
	}
	return fmt.Sprintf("upstream fetch failed for highway %s (attempt %d): %v",
		e.HighwayCode, e.Attempt, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

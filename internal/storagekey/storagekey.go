// Package storagekey derives deterministic storage keys for archived
// snapshots. The key is the dedupe unit: one (camera, capture second) pair
// maps to exactly one key, stable across process restarts.
package storagekey

import (
	"fmt"
	"time"
)

// highwayAliases normalizes upstream highway codes to the published ones.
var highwayAliases = map[string]string{
	"NKV": "NKVE",
}

// Derive maps (highway_code, camera_id, capture_time) to a storage key of
// the form {HIGHWAY}_{CAMERA}_{YYYYMMDD}_{HHMMSS}. It is injective for
// distinct (camera_id, capture_time) pairs at one-second resolution.
func Derive(highwayCode, cameraID string, captureTime time.Time) string {
	if alias, ok := highwayAliases[highwayCode]; ok {
		highwayCode = alias
	}
	return fmt.Sprintf("%s_%s_%s", highwayCode, cameraID, captureTime.Format("20060102_150405"))
}

// Filename is the on-disk name for a derived key. Snapshots are always
// JPEG upstream.
func Filename(highwayCode, cameraID string, captureTime time.Time) string {
	return Derive(highwayCode, cameraID, captureTime) + ".jpg"
}

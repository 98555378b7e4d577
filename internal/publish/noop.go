// Package publish provides capture-event publishers.
package publish

import (
	"context"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Noop discards capture events. It is the default publisher when no
// messaging backend is configured.
type Noop struct{}

// NewNoop returns a publisher that drops every event.
func NewNoop() *Noop { return &Noop{} }

// Publish discards the event.
func (n *Noop) Publish(context.Context, cctv.CaptureEvent) error { return nil }

// Close is a no-op.
func (n *Noop) Close() error { return nil }

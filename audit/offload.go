package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/event"
)

// DefaultOffloadThreshold is the serialized-response size above which
// payloads move to blob storage.
const DefaultOffloadThreshold = 10 << 20 // 10 MiB

// BlobStore persists oversized payloads outside the state store.
type BlobStore interface {
	// Save writes data under name and returns a URL it can be fetched
	// from later.
	Save(ctx context.Context, name string, data []byte) (url string, err error)
}

// Offloader moves oversized action responses into blob storage, replacing
// the response body with a small reference envelope. When the blob store
// is missing or fails, the original response passes through unchanged —
// offloading trims payloads, it never drops them.
type Offloader struct {
	blobs     BlobStore
	bus       *event.Bus
	logger    *slog.Logger
	threshold int

	offloaded atomic.Int64
	failed    atomic.Int64
}

// OffloadOption configures an Offloader.
type OffloadOption func(*Offloader)

// WithThreshold sets the byte size above which responses are offloaded.
// Responses exactly at the threshold stay inline.
func WithThreshold(bytes int) OffloadOption {
	return func(o *Offloader) {
		if bytes > 0 {
			o.threshold = bytes
		}
	}
}

// WithOffloadBus announces each offloaded payload as a resource.created
// event so the resource registry can track the file.
func WithOffloadBus(bus *event.Bus) OffloadOption {
	return func(o *Offloader) { o.bus = bus }
}

// WithOffloadLogger sets the logger for degraded offload attempts.
func WithOffloadLogger(l *slog.Logger) OffloadOption {
	return func(o *Offloader) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOffloader creates an Offloader backed by blobs. A nil blob store is
// legal and turns every call into a pass-through.
func NewOffloader(blobs BlobStore, opts ...OffloadOption) *Offloader {
	o := &Offloader{
		blobs:     blobs,
		logger:    slog.Default(),
		threshold: DefaultOffloadThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Offload inspects the result of inv. When the serialized Data is strictly
// larger than the threshold, the payload is saved to blob storage and a
// copy of the result with an envelope body is returned. On any failure the
// original result is returned unchanged.
func (o *Offloader) Offload(ctx context.Context, inv *action.Invocation, res *action.Result) *action.Result {
	if o.blobs == nil || res == nil || res.Data == nil {
		return res
	}

	data, err := json.Marshal(res.Data)
	if err != nil || len(data) <= o.threshold {
		return res
	}
	size := len(data)

	now := time.Now().UTC()
	name := fmt.Sprintf("%s_result_%s.json", inv.Name, now.Format("20060102_150405"))

	url, err := o.blobs.Save(ctx, name, data)
	if err != nil {
		o.failed.Add(1)
		o.logger.Warn("audit: offload failed, returning full response",
			slog.String("action", inv.Name),
			slog.Int("size_bytes", size),
			slog.String("error", err.Error()),
		)
		return res
	}
	o.offloaded.Add(1)

	o.logger.Info("audit: oversized response offloaded",
		slog.String("action", inv.Name),
		slog.String("file_name", name),
		slog.Int("size_bytes", size),
	)

	if o.bus != nil {
		opts := []event.EmitOption{}
		if inv.Caller != nil && inv.Caller.UserID != "" {
			opts = append(opts, event.WithUser(inv.Caller.UserID))
		}
		if !inv.RunID.IsNil() {
			opts = append(opts, event.WithCorrelation(inv.RunID.String()))
		}
		o.bus.Emit(ctx, event.ResourceCreated, "offload", map[string]any{
			"resource_type": "file",
			"resource_id":   name,
			"url":           url,
			"size_bytes":    size,
			"action":        inv.Name,
		}, opts...)
	}

	out := *res
	out.Data = map[string]any{
		"success":             true,
		"message":             fmt.Sprintf("response too large (%d bytes), offloaded to file", size),
		"file_url":            url,
		"file_name":           name,
		"original_size_bytes": size,
		"action":              inv.Name,
		"timestamp":           now.Format(time.RFC3339),
	}
	return &out
}

// OffloadStats reports offloader counters.
type OffloadStats struct {
	Offloaded int64 `json:"offloaded"`
	Failed    int64 `json:"failed"`
}

// Stats returns a point-in-time snapshot of offload counters.
func (o *Offloader) Stats() OffloadStats {
	return OffloadStats{
		Offloaded: o.offloaded.Load(),
		Failed:    o.failed.Load(),
	}
}

package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrStoreNotConfigured is returned when export is invoked without a backing store.
	ErrStoreNotConfigured = errors.New("audit: store not configured (fail-closed)")
)

// ExportRequest defines the time window to export.
type ExportRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Exporter bundles recorded events into a verifiable evidence pack.
type Exporter struct {
	store    *MemoryStore
	uploader *S3Uploader
}

func NewExporter(s *MemoryStore) *Exporter {
	return &Exporter{store: s}
}

// WithUploader attaches an object store destination for generated packs.
func (e *Exporter) WithUploader(u *S3Uploader) *Exporter {
	e.uploader = u
	return e
}

// GeneratePack creates a zip containing the audit events and a manifest,
// returning the zip bytes and their SHA-256 checksum. If an uploader is
// configured, the pack is also pushed to the object store.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.store == nil {
		return nil, "", ErrStoreNotConfigured
	}

	events := e.store.Query(req.StartTime, req.EndTime)

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", err
	}

	manifest := map[string]any{
		"generated_at": time.Now().UTC(),
		"event_count":  len(events),
		"period": map[string]any{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("events.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(eventsJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "GummyBear audit evidence pack\nGenerated at %s\n", time.Now().UTC().Format(time.RFC3339))

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	checksum := hex.EncodeToString(hash[:])

	if e.uploader != nil {
		if _, err := e.uploader.Upload(ctx, zipBytes, checksum); err != nil {
			return nil, "", fmt.Errorf("audit: pack upload failed: %w", err)
		}
	}

	return zipBytes, checksum, nil
}

// Package ingest applies package updates published on a Kafka topic to the
// document store.
//
// A message value is a JSON PackageDocument keyed by package name. An empty
// value is a tombstone and deletes the package named by the key.
package ingest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gcbaptista/package-search/internal/errors"
	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/metrics"
	"github.com/gcbaptista/package-search/model"
)

// Outcome labels for the ingest message counter.
const (
	OutcomeUpserted = "upserted"
	OutcomeDeleted  = "deleted"
	OutcomeIgnored  = "ignored"
	OutcomeInvalid  = "invalid"
)

// PackageSink receives decoded package updates.
type PackageSink interface {
	AddPackage(doc model.PackageDocument) error
	DeletePackage(name string) error
}

// Handler decodes ingest messages and applies them to a PackageSink.
type Handler struct {
	sink    PackageSink
	metrics *metrics.Metrics
	logger  *slog.Logger
	pending atomic.Int64
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(sink PackageSink, m *metrics.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		sink:    sink,
		metrics: m,
		logger:  log.With("component", "ingest"),
	}
}

// HandleMessage applies one message. Malformed payloads return an error
// wrapping errors.ErrInvalidInput; deleting an unknown package is not an error.
// Any other error comes from the sink and may succeed on retry.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	if len(value) == 0 {
		return h.handleTombstone(string(key))
	}

	var doc model.PackageDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		h.count(OutcomeInvalid)
		return fmt.Errorf("decoding package message: %w", errors.NewValidationError("value", err.Error()))
	}
	if strings.TrimSpace(doc.Name) == "" {
		doc.Name = string(key)
	}
	if err := h.sink.AddPackage(doc); err != nil {
		if stderrors.Is(err, errors.ErrInvalidInput) {
			h.count(OutcomeInvalid)
		}
		return fmt.Errorf("storing package %q: %w", doc.Name, err)
	}

	h.pending.Add(1)
	h.count(OutcomeUpserted)
	logger.FromContext(ctx).Debug("package ingested", "package", doc.Name)
	return nil
}

func (h *Handler) handleTombstone(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		h.count(OutcomeInvalid)
		return errors.NewValidationError("key", "tombstone without a package name")
	}
	if err := h.sink.DeletePackage(name); err != nil {
		if stderrors.Is(err, errors.ErrPackageNotFound) {
			h.count(OutcomeIgnored)
			return nil
		}
		return fmt.Errorf("deleting package %q: %w", name, err)
	}
	h.pending.Add(1)
	h.count(OutcomeDeleted)
	return nil
}

// TakePending returns the number of store changes applied since the last
// call and resets the counter.
func (h *Handler) TakePending() int64 {
	return h.pending.Swap(0)
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.IngestMessagesTotal.WithLabelValues(outcome).Inc()
	}
}

package observability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
)

// MetricsWriter appends one JSON line per completed query to a log file.
// Writes are serialized; a write failure is logged and dropped so metrics
// never fail a query.
type MetricsWriter struct {
	mu     sync.Mutex
	file   *os.File
	logger *logrus.Logger
}

// NewMetricsWriter opens (or creates) the metrics log under dir.
func NewMetricsWriter(dir string, logger *logrus.Logger) (*MetricsWriter, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	path := filepath.Join(dir, "query_metrics.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	return &MetricsWriter{file: f, logger: logger}, nil
}

// Record appends one metrics record.
func (w *MetricsWriter) Record(m models.QueryMetrics) {
	data, err := json.Marshal(m)
	if err != nil {
		w.logger.WithError(err).Warn("marshal query metrics failed")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		w.logger.WithError(err).Warn("write query metrics failed")
	}
}

// Close flushes and closes the underlying file.
func (w *MetricsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.logger.WithError(err).Warn("sync metrics log failed")
	}
	return w.file.Close()
}

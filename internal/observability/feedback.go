package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
)

// FeedbackStore persists thumbs-up/down feedback as JSON lines and keeps
// running totals for the stats endpoint.
type FeedbackStore struct {
	mu     sync.Mutex
	file   *os.File
	logger *logrus.Logger

	total    int
	positive int
	negative int
}

// NewFeedbackStore opens the feedback log under dir, replaying existing
// records to rebuild the counters.
func NewFeedbackStore(dir string, logger *logrus.Logger) (*FeedbackStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create feedback dir: %w", err)
	}
	path := filepath.Join(dir, "feedback.jsonl")

	s := &FeedbackStore{logger: logger}
	if err := s.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	s.file = f
	return s, nil
}

func (s *FeedbackStore) replay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open feedback log for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec models.FeedbackRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			s.logger.WithError(err).Warn("skipping corrupt feedback record")
			continue
		}
		s.count(rec.Rating)
	}
	return scanner.Err()
}

func (s *FeedbackStore) count(rating models.FeedbackRating) {
	s.total++
	switch rating {
	case models.RatingPositive:
		s.positive++
	case models.RatingNegative:
		s.negative++
	}
}

// Add validates and stores one feedback submission.
func (s *FeedbackStore) Add(sub models.FeedbackSubmission) (models.FeedbackRecord, error) {
	if sub.QueryID == "" {
		return models.FeedbackRecord{}, fmt.Errorf("query_id is required")
	}
	if sub.Rating != models.RatingPositive && sub.Rating != models.RatingNegative {
		return models.FeedbackRecord{}, fmt.Errorf("rating must be %q or %q",
			models.RatingPositive, models.RatingNegative)
	}

	rec := models.FeedbackRecord{
		FeedbackID: uuid.New().String(),
		QueryID:    sub.QueryID,
		Rating:     sub.Rating,
		Detail:     sub.Detail,
		Timestamp:  time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("marshal feedback: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("write feedback: %w", err)
	}
	s.count(rec.Rating)
	return rec, nil
}

// Stats returns aggregate feedback counts.
func (s *FeedbackStore) Stats() models.FeedbackStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.FeedbackStats{
		Total:    s.total,
		Positive: s.positive,
		Negative: s.negative,
	}
	if s.total > 0 {
		stats.PositiveRate = float64(s.positive) / float64(s.total)
	}
	return stats
}

// Close closes the feedback log.
func (s *FeedbackStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Package passes persists completed backtest pass summaries in a WAL so
// a run's trajectory survives crashes and can be inspected afterwards.
package passes

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"promptune/internal/domain"
)

const (
	defaultPassDir   = "./wal/passes"
	passSegmentLimit = 100
	passMaxSegments  = 5
	passKeyPrefix    = "pass_"
)

// WALStore is an append-only store of PassReport records.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed pass store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultPassDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "pass_",
		SegmentThreshold: passSegmentLimit,
		MaxSegments:      passMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init pass WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the pass report to WAL. Callers must ensure PassID is set.
func (s *WALStore) Append(report domain.PassReport) error {
	if s == nil || s.wal == nil {
		return errors.New("pass store is not initialized")
	}
	if report.PassID == "" {
		return errors.New("pass report ID is required")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "marshal pass report")
	}

	key := passKeyPrefix + report.PassID

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Reports returns all pass reports in append order.
func (s *WALStore) Reports() ([]domain.PassReport, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("pass store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	reports := make([]domain.PassReport, 0, current)
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, passKeyPrefix) {
			continue
		}
		var report domain.PassReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, errors.Wrap(err, "decode pass report")
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	return s.wal.Close()
}

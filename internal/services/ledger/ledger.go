// Package ledger keeps the bounded on-disk history of prompts and the
// accuracy each one scored.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"promptune/internal/domain"
)

// MaxEntries is the number of records retained; older records are
// evicted FIFO by insertion order, not by score.
const MaxEntries = 10

// Ledger is the only writer of its file.
type Ledger struct {
	path string
}

// New creates a ledger persisted at path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Load returns the persisted records, or an empty slice when no ledger
// file exists yet.
func (l *Ledger) Load() ([]domain.PromptRecord, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read ledger %s", l.path)
	}

	var records []domain.PromptRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "decode ledger %s", l.path)
	}

	return records, nil
}

// Append pushes a new record, truncates to the most recent MaxEntries,
// and persists the full ledger atomically. The updated history is
// returned for the improvement prompt.
func (l *Ledger) Append(prompt string, score float64) ([]domain.PromptRecord, error) {
	records, err := l.Load()
	if err != nil {
		return nil, err
	}

	records = append(records, domain.PromptRecord{Prompt: prompt, Score: score})
	if len(records) > MaxEntries {
		records = records[len(records)-MaxEntries:]
	}

	if err := l.persist(records); err != nil {
		return nil, err
	}

	return records, nil
}

func (l *Ledger) persist(records []domain.PromptRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode ledger")
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create ledger dir")
	}

	tmp, err := os.CreateTemp(dir, "ledger_*.json")
	if err != nil {
		return errors.Wrap(err, "create ledger temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write ledger temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close ledger temp file")
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replace ledger %s", l.path)
	}

	return nil
}

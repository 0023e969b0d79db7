package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/cardsort/pkg/domain"
)

// Counter file names, one scalar per file.
const (
	LifetimeFile = "move_count.txt"
	MonthlyFile  = "monthly_move_count.txt"
	FailedFile   = "failed_reads.txt"
)

// CounterStore implements ports.CounterStore with one text file per counter.
type CounterStore struct {
	Dir string
}

// NewCounterStore creates a CounterStore rooted at dir.
// If dir is empty, it defaults to ".cardsort".
func NewCounterStore(dir string) *CounterStore {
	if dir == "" {
		dir = ".cardsort"
	}
	return &CounterStore{Dir: dir}
}

// Load reads the three counters. A missing file counts as zero.
func (s *CounterStore) Load(ctx context.Context) (domain.Counters, error) {
	var c domain.Counters
	for _, f := range s.fields(&c) {
		v, err := readCounter(filepath.Join(s.Dir, f.name))
		if err != nil {
			return domain.Counters{}, err
		}
		*f.value = v
	}
	return c, nil
}

// Save writes each counter atomically.
func (s *CounterStore) Save(ctx context.Context, counters domain.Counters) error {
	for _, f := range s.fields(&counters) {
		data := []byte(strconv.FormatInt(*f.value, 10))
		if err := writeAtomic(filepath.Join(s.Dir, f.name), data); err != nil {
			return err
		}
	}
	return nil
}

type counterField struct {
	name  string
	value *int64
}

func (s *CounterStore) fields(c *domain.Counters) []counterField {
	return []counterField{
		{LifetimeFile, &c.Lifetime},
		{MonthlyFile, &c.Monthly},
		{FailedFile, &c.Failed},
	}
}

func readCounter(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid counter in %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

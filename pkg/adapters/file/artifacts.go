package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
)

// TimestampLayout names archived failures.
const TimestampLayout = "20060102-150405"

const (
	failedPrefix = "failed_"
	failedExt    = ".png"
	cropSuffix   = "_combined_crop.jpg"
)

// ArtifactStore implements ports.ArtifactStore over the images the recognizer leaves on disk.
type ArtifactStore struct {
	// ScanPath is the raw capture of the card at the read station.
	ScanPath string
	// CropPath is the recognizer's combined crop, if it produced one.
	CropPath string
	// DisplayPath is the image shown as "last scanned".
	DisplayPath string
	// FailedDir receives captures of cards that could not be identified.
	FailedDir string
}

// ArchiveFailed copies the capture to failed_<ts>.png and, when present, the crop to
// <ts>_combined_crop.jpg.
func (s *ArtifactStore) ArchiveFailed(ctx context.Context, at time.Time) error {
	ts := at.Format(TimestampLayout)
	if err := copyFile(s.ScanPath, filepath.Join(s.FailedDir, failedPrefix+ts+failedExt)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("capture %s: %w", s.ScanPath, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to archive capture: %w", err)
	}
	if s.CropPath == "" {
		return nil
	}
	if err := copyFile(s.CropPath, filepath.Join(s.FailedDir, ts+cropSuffix)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to archive crop: %w", err)
	}
	return nil
}

// RefreshScanned copies the latest capture to DisplayPath.
func (s *ArtifactStore) RefreshScanned(ctx context.Context) error {
	if err := copyFile(s.ScanPath, s.DisplayPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("capture %s: %w", s.ScanPath, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to refresh last scanned image: %w", err)
	}
	return nil
}

// ListFailed returns the timestamps of archived failures, newest first.
func (s *ArtifactStore) ListFailed(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.FailedDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}

	stamps := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, failedPrefix) || !strings.HasSuffix(name, failedExt) {
			continue
		}
		stamps = append(stamps, strings.TrimSuffix(strings.TrimPrefix(name, failedPrefix), failedExt))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(stamps)))
	return stamps, nil
}

// ClearFailed removes every archived capture and crop.
func (s *ArtifactStore) ClearFailed(ctx context.Context) error {
	entries, err := os.ReadDir(s.FailedDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to list failures: %w", err)
	}
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if (strings.HasPrefix(name, failedPrefix) && strings.HasSuffix(name, failedExt)) || strings.HasSuffix(name, cropSuffix) {
			if err := os.Remove(filepath.Join(s.FailedDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

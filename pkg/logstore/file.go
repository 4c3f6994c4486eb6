package logstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

// FileStore keeps one plain-text logfile per router under dir, named
// <address>.log. Each line is the entry's String() rendering: an RFC 3339
// timestamp, one space, the message.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Load(ctx context.Context, address string) ([]models.LogEntry, error) {
	file, err := os.Open(s.logPath(address))
	if errors.Is(err, os.ErrNotExist) {
		// First scan of this router: nothing is known yet.
		return []models.LogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open logfile for %s: %w", address, err)
	}
	defer file.Close()

	var entries []models.LogEntry
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseStoredLine(line)
		if err != nil {
			return nil, fmt.Errorf("logfile for %s: %w", address, err)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read logfile for %s: %w", address, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	logrus.WithFields(logrus.Fields{
		"router":  address,
		"entries": len(entries),
	}).Debug("Loaded known entries from logfile")
	return entries, nil
}

func (s *FileStore) Append(ctx context.Context, address string, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create log directory %s: %w", s.dir, err)
	}

	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	file, err := os.OpenFile(s.logPath(address), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open logfile for %s: %w", address, err)
	}
	defer file.Close()

	for _, entry := range sorted {
		if _, err := fmt.Fprintln(file, entry.String()); err != nil {
			return fmt.Errorf("append to logfile for %s: %w", address, err)
		}
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) logPath(address string) string {
	return filepath.Join(s.dir, address+".log")
}

// parseStoredLine splits a persisted line at the first space: everything
// before it is the RFC 3339 timestamp, everything after is the message.
func parseStoredLine(line string) (models.LogEntry, error) {
	prefix, message, found := strings.Cut(line, " ")
	if !found {
		return models.LogEntry{}, fmt.Errorf("malformed log line %q", line)
	}
	ts, err := time.Parse(time.RFC3339, prefix)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("parse timestamp in log line %q: %w", line, err)
	}
	return models.LogEntry{Timestamp: ts, Message: message}, nil
}

package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nishimvki/coverdiscover/internal/domain"
)

// WriterService implements the Monitor Pattern for thread safety: one
// goroutine owns the data file and drains records from a channel.
type WriterService struct {
	FilePath string
	Logger   *slog.Logger

	written int
	err     error
}

func (w *WriterService) Start(wg *sync.WaitGroup, input <-chan domain.Record) {
	defer wg.Done()

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := openAppend(w.FilePath)
	if err != nil {
		w.err = err
		logger.Error("Cannot open data file", "path", w.FilePath, "err", err)
		for range input {
		}
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for rec := range input {
		// Write as NDJSON
		if err := enc.Encode(rec); err != nil {
			w.err = err
			logger.Error("Write failed", "id", rec.Track.ID, "err", err)
			continue
		}
		w.written++
	}
}

// Result is valid once the WaitGroup passed to Start is done
func (w *WriterService) Result() (int, error) {
	return w.written, w.err
}

// NewRecords stamps tracks from one sampling run with a shared run id
func NewRecords(tracks []domain.Track, at time.Time) []domain.Record {
	runID := uuid.NewString()
	records := make([]domain.Record, 0, len(tracks))
	for _, t := range tracks {
		records = append(records, domain.Record{RunID: runID, CollectedAt: at.UTC(), Track: t})
	}
	return records
}

// Append writes records synchronously through a WriterService
func Append(path string, records []domain.Record) error {
	input := make(chan domain.Record, len(records))
	for _, r := range records {
		input <- r
	}
	close(input)

	var wg sync.WaitGroup
	w := &WriterService{FilePath: path, Logger: slog.Default()}
	wg.Add(1)
	go w.Start(&wg, input)
	wg.Wait()

	_, err := w.Result()
	return err
}

// LoadRecords reads the NDJSON data file, skipping malformed lines.
// A missing file yields no records and no error.
func LoadRecords(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []domain.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r domain.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err == nil && r.Track.ID != "" {
			records = append(records, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// LoadIDs returns the ids of every track already stored in path
func LoadIDs(path string) (domain.IDSet, error) {
	records, err := LoadRecords(path)
	ids := make(domain.IDSet, len(records))
	for _, r := range records {
		ids.Add(r.Track.ID)
	}
	return ids, err
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

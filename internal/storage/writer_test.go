package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracks(ids ...string) []domain.Track {
	var out []domain.Track
	for _, id := range ids {
		out = append(out, domain.Track{ID: id, Name: "Song " + id, Popularity: 12, Query: "a%"})
	}
	return out
}

func TestNewRecords_SharesRunID(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))
	recs := NewRecords(tracks("a", "b"), at)

	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].RunID, recs[1].RunID)
	_, err := uuid.Parse(recs[0].RunID)
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, recs[0].CollectedAt.Location())

	other := NewRecords(tracks("c"), at)
	assert.NotEqual(t, recs[0].RunID, other[0].RunID)
}

func TestAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "current.json")

	require.NoError(t, Append(path, NewRecords(tracks("a", "b"), time.Now())))
	require.NoError(t, Append(path, NewRecords(tracks("c"), time.Now())))

	recs, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[2].Track.ID)
	assert.Equal(t, "a%", recs[0].Track.Query)

	ids, err := LoadIDs(path)
	require.NoError(t, err)
	assert.Equal(t, domain.NewIDSet("a", "b", "c"), ids)
}

func TestLoadRecords_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.json")
	content := `{"run_id":"r","track":{"id":"ok1"}}
not json
{"run_id":"r","track":{}}
{"run_id":"r","track":{"id":"ok2"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	recs, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ok2", recs[1].Track.ID)
}

func TestLoadRecords_MissingFile(t *testing.T) {
	recs, err := LoadRecords(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)
	assert.Empty(t, recs)

	ids, err := LoadIDs(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWriterService_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.json")
	input := make(chan domain.Record)
	w := &WriterService{FilePath: path}

	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go w.Start(&writerWg, input)

	var producers sync.WaitGroup
	for p := 0; p < 4; p++ {
		producers.Add(1)
		go func(p int) {
			defer producers.Done()
			for i := 0; i < 25; i++ {
				input <- domain.Record{RunID: "run", Track: domain.Track{ID: string(rune('a'+p)) + string(rune('A'+i))}}
			}
		}(p)
	}
	producers.Wait()
	close(input)
	writerWg.Wait()

	n, err := w.Result()
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	ids, err := LoadIDs(path)
	require.NoError(t, err)
	assert.Len(t, ids, 100)
}

func TestWriterService_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := Append(filepath.Join(blocker, "current.json"), NewRecords(tracks("a"), time.Now()))
	assert.Error(t, err)
}

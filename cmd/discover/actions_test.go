package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nishimvki/coverdiscover/internal/collector"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/nishimvki/coverdiscover/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run(context.Background(), append([]string{"discover", "--env", ""}, args...))
	require.NoError(t, err, errOut.String())
	return out.String()
}

func TestSampleCommand_AccumulatesUniqueTracks(t *testing.T) {
	t.Setenv("COLLECTOR_MODE", "mock")
	path := filepath.Join(t.TempDir(), "current.json")

	out := runApp(t, "sample", "--count", "3", "--out", path, "--seed", "7")
	assert.Contains(t, out, " 1. Simulated Track")

	first, err := storage.LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, first, 3)

	runApp(t, "sample", "--count", "3", "--out", path, "--seed", "7")

	all, err := storage.LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, all, 6)
	ids := domain.NewIDSet()
	for _, r := range all {
		assert.False(t, ids.Has(r.Track.ID), "duplicate %s", r.Track.ID)
		ids.Add(r.Track.ID)
	}
	assert.NotEqual(t, all[0].RunID, all[5].RunID)
}

func TestSampleCommand_AppliesFilter(t *testing.T) {
	t.Setenv("COLLECTOR_MODE", "mock")
	path := filepath.Join(t.TempDir(), "current.json")

	runApp(t, "sample", "--count", "5", "--out", path, "--square", "--require-preview", "--max-popularity", "30", "--seed", "3")

	recs, err := storage.LoadRecords(path)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		img, ok := r.Track.FirstImage()
		require.True(t, ok)
		assert.True(t, img.Square())
		assert.NotEmpty(t, r.Track.PreviewURL)
		assert.LessOrEqual(t, r.Track.Popularity, 30)
	}
}

func TestOneCommand_NoSave(t *testing.T) {
	t.Setenv("COLLECTOR_MODE", "mock")
	path := filepath.Join(t.TempDir(), "current.json")

	out := runApp(t, "one", "--out", path, "--no-save", "--attempts", "10", "--seed", "11")
	assert.Contains(t, out, " 1. ")

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSampleCommand_MissingCredentials(t *testing.T) {
	t.Setenv("COLLECTOR_MODE", "api")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("SPOTIPY_CLIENT_ID", "")
	t.Setenv("SPOTIPY_CLIENT_SECRET", "")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{"discover", "--env", "", "sample"})
	assert.Error(t, err)
}

func TestSampleCommand_RejectsLimitsBeyondEndpoint(t *testing.T) {
	t.Setenv("COLLECTOR_MODE", "mock")
	path := filepath.Join(t.TempDir(), "current.json")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "batch above page limit", args: []string{"--batch", "100"}, want: collector.ErrInvalidLimit},
		{name: "offset cap above endpoint cap", args: []string{"--offset-cap", "5000"}, want: collector.ErrOffsetCap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			app.ErrWriter = &bytes.Buffer{}
			args := append([]string{"discover", "--env", "", "sample", "--count", "5", "--attempts", "6", "--out", path}, tt.args...)

			err := app.Run(context.Background(), args)
			assert.ErrorIs(t, err, tt.want)
			_, statErr := os.Stat(path)
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}

	assert.NoError(t, checkLimits(collector.MaxLimit, collector.OffsetCap))
}

func TestLoadExisting(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "current.json")
	require.NoError(t, storage.Append(data, storage.NewRecords([]domain.Track{{ID: "fromdata"}}, testTime)))
	csvPath := filepath.Join(dir, "skip.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id\n4uLU6hMCjMI75M1A2tKUQC\n"), 0o644))
	other := filepath.Join(dir, "older.json")
	require.NoError(t, storage.Append(other, storage.NewRecords([]domain.Track{{ID: "fromolder"}}, testTime)))

	ids, err := loadExisting(data, true, []string{csvPath, other})
	require.NoError(t, err)
	assert.Equal(t, domain.NewIDSet("fromdata", "4uLU6hMCjMI75M1A2tKUQC", "fromolder"), ids)

	ids, err = loadExisting(data, false, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = loadExisting(data, false, []string{filepath.Join(dir, "absent.csv")})
	assert.Error(t, err)
}

func TestPrintTracks(t *testing.T) {
	var buf bytes.Buffer
	printTracks(&buf, []domain.Track{{
		Name:        "Song",
		Artists:     []string{"A", "B"},
		Album:       domain.Album{Name: "LP", ReleaseDate: "1999", Images: []domain.Image{{URL: "u", Height: 64, Width: 64}}},
		Popularity:  12,
		ExternalURL: "https://open.spotify.com/track/x",
	}})

	out := buf.String()
	assert.Contains(t, out, " 1. Song - A, B")
	assert.Contains(t, out, "album: LP (1999)")
	assert.Contains(t, out, "popularity: 12/100  preview: no preview")
	assert.Contains(t, out, "artwork: u (64x64)")
	assert.Contains(t, out, "https://open.spotify.com/track/x")
}

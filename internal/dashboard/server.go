package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/nishimvki/coverdiscover/internal/query"
	"github.com/nishimvki/coverdiscover/internal/storage"
)

// StartServer serves the dashboard until ctx is cancelled, then shuts down
func StartServer(ctx context.Context, dataFile string, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewHandler(dataFile),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dashboard: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Dashboard stopped")
	return nil
}

// NewHandler serves charts over the data file, re-read on every request
func NewHandler(dataFile string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		records := loadData(dataFile)

		page := components.NewPage()
		page.PageTitle = "Random Track Discovery"
		page.AddCharts(shapePie(records), popularityBar(records), decadeBar(records))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Render(w); err != nil {
			slog.Error("Dashboard render failed", "err", err)
		}
	})

	mux.HandleFunc("/tracks.json", func(w http.ResponseWriter, r *http.Request) {
		records := loadData(dataFile)
		if records == nil {
			records = []domain.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			slog.Error("Encode tracks failed", "err", err)
		}
	})

	return mux
}

func loadData(path string) []domain.Record {
	records, err := storage.LoadRecords(path)
	if err != nil {
		slog.Warn("Data file partially read", "path", path, "err", err)
	}
	return records
}

// 1. Query Shape Share
func shapePie(records []domain.Record) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Query Shape Share"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	counts := shapeCounts(records)
	var items []opts.PieData
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		items = append(items, opts.PieData{Name: k, Value: counts[k]})
	}
	pie.AddSeries("Tracks", items)
	return pie
}

// 2. Popularity Spread
func popularityBar(records []domain.Record) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Popularity Spread"}))

	hist := popularityHistogram(records)
	var x []string
	var y []opts.BarData
	for i, v := range hist {
		if i == len(hist)-1 {
			x = append(x, "90-100")
		} else {
			x = append(x, fmt.Sprintf("%d-%d", i*10, i*10+9))
		}
		y = append(y, opts.BarData{Value: v})
	}
	bar.SetXAxis(x).AddSeries("Tracks", y)
	return bar
}

// 3. Release Decades
func decadeBar(records []domain.Record) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Release Decades"}))

	counts := decadeCounts(records)
	var x []string
	var y []opts.BarData
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		x = append(x, k)
		y = append(y, opts.BarData{Value: counts[k]})
	}
	bar.SetXAxis(x).AddSeries("Tracks", y)
	return bar
}

func shapeCounts(records []domain.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		shape := r.Track.Shape
		if shape == "" {
			// records written before the shape was stored
			shape = string(query.Classify(r.Track.Query))
		}
		if shape == "" {
			shape = "unknown"
		}
		counts[shape]++
	}
	return counts
}

func popularityHistogram(records []domain.Record) [10]int {
	var hist [10]int
	for _, r := range records {
		p := min(max(r.Track.Popularity, 0), 100)
		hist[min(p/10, 9)]++
	}
	return hist
}

func decadeCounts(records []domain.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		date := r.Track.Album.ReleaseDate
		if len(date) < 4 {
			continue
		}
		year, err := strconv.Atoi(date[:4])
		if err != nil {
			continue
		}
		counts[fmt.Sprintf("%ds", year/10*10)]++
	}
	return counts
}

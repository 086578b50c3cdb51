package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishimvki/coverdiscover/internal/query"
	"github.com/nishimvki/coverdiscover/internal/sampler"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func samplingFlags(batch int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "attempts",
			Usage: "search round-trips to spend before giving up (0 = three per track)",
		},
		&cli.IntFlag{
			Name:  "batch",
			Usage: "tracks fetched per search",
			Value: batch,
		},
		&cli.IntFlag{
			Name:  "offset-cap",
			Usage: "deepest offset+limit the search endpoint serves",
			Value: sampler.DefaultOffsetCap,
		},
		&cli.BoolFlag{Name: "require-image", Usage: "keep only tracks with album art"},
		&cli.BoolFlag{Name: "square", Usage: "keep only tracks whose first album image is square"},
		&cli.BoolFlag{Name: "require-preview", Usage: "keep only tracks with a preview clip"},
		&cli.IntFlag{
			Name:  "max-popularity",
			Usage: "keep only tracks at or below this popularity (-1 = no ceiling)",
			Value: -1,
		},
		&cli.StringSliceFlag{
			Name:  "shape",
			Usage: "query shapes to draw from (letter, bigram, letter_year, extended)",
		},
		&cli.IntFlag{Name: "year-from", Value: query.DefaultMinYear},
		&cli.IntFlag{Name: "year-to", Value: query.DefaultMaxYear},
		&cli.StringFlag{Name: "alphabet", Usage: "CSV with characters for extended queries"},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "data file (NDJSON) or CSV of track ids to skip",
		},
		&cli.StringFlag{Name: "out", Usage: "data file to append to (default DATA_FILE)"},
		&cli.BoolFlag{Name: "no-save", Usage: "print only, do not append to the data file"},
		&cli.Uint64Flag{Name: "seed", Usage: "random seed for reproducible runs (0 = random)"},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "pull random tracks out of the catalog search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to the env file",
				Value: ".env",
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (default LOG_LEVEL)"},
			&cli.StringFlag{Name: "log-format", Usage: "json or text (default LOG_FORMAT)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "sample",
				Usage: "collect a batch of new random tracks",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "number of new tracks to collect",
						Value: 10,
					},
				}, samplingFlags(sampler.DefaultBatchSize)...),
				Action: sampleAction,
			},
			{
				Name:   "one",
				Usage:  "pick a single random track",
				Flags:  samplingFlags(1),
				Action: oneAction,
			},
			{
				Name:  "serve",
				Usage: "serve the dashboard over the data file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "HTTP port (default PORT or 8080)"},
					&cli.StringFlag{Name: "data", Usage: "data file (default DATA_FILE)"},
				},
				Action: serveAction,
			},
		},
	}
}

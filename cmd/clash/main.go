// clash runs automated matches between two or more UCI chess engines to
// measure their relative strength.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/seekerror/build"
	"github.com/seekerror/logw"

	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/opening"
	"github.com/sparkchess/clash/pkg/session"
	"github.com/sparkchess/clash/pkg/tablebase"
	"github.com/sparkchess/clash/pkg/tournament"
)

var version = build.NewVersion(0, 1, 0)

var configPath = flag.String("config", "", "Path to the YAML match configuration")

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: clash -config <path>

clash runs automated matches between two or more UCI chess engines,
reporting a score and confidence interval, optionally recording PGN.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *configPath == "" {
		flag.Usage()
		logw.Exitf(ctx, "Missing -config")
	}

	logw.Infof(ctx, "clash %v starting, config=%v", version, *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logw.Exitf(ctx, "Invalid configuration: %v", err)
	}

	if cfg.Resign.Score > 0 {
		session.SetResignMagnitude(cfg.Resign.Score)
	}

	src, closeSrc, err := buildOpeningSource(cfg)
	if err != nil {
		logw.Exitf(ctx, "Invalid openings: %v", err)
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	prober := buildProber(ctx, cfg)

	matchups, err := tournament.Run(ctx, cfg, src, prober)
	if err != nil {
		logw.Errorf(ctx, "Tournament failed: %v", err)
		os.Exit(1)
	}

	for _, m := range matchups {
		fmt.Printf("%v vs. %v: %v games\n", m.EngineA, m.EngineB, len(m.Scores))
	}

	if ctx.Err() != nil {
		os.Exit(1)
	}
}

// buildOpeningSource constructs the configured EPD or opening-book source,
// doubled so each position is played with both colors, and an optional
// close function for the caller to defer.
func buildOpeningSource(cfg config.Config) (opening.Source, func(), error) {
	if cfg.Openings == "" {
		return nil, nil, fmt.Errorf("openings path is required")
	}

	if cfg.BookDepth != nil {
		seed := rand.Int63()
		return opening.NewSequence(opening.NewBookReader(seed, *cfg.BookDepth)), nil, nil
	}

	r, err := opening.NewEPDReader(cfg.Openings)
	if err != nil {
		return nil, nil, err
	}
	return opening.NewSequence(r), func() { _ = r.Close() }, nil
}

func buildProber(ctx context.Context, cfg config.Config) tablebase.Prober {
	if cfg.Tablebase == nil {
		return tablebase.NoopProber{}
	}
	logw.Warningf(ctx, "Tablebase path %v configured but no backend is bundled; adjudication disabled", *cfg.Tablebase)
	return tablebase.NoopProber{}
}

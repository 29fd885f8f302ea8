package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/jobradar/jobradar/pkg/analysis"
	"github.com/jobradar/jobradar/pkg/config"
	"github.com/jobradar/jobradar/pkg/feed"
	"github.com/jobradar/jobradar/pkg/relevance"
	"github.com/jobradar/jobradar/pkg/repository"
	"github.com/jobradar/jobradar/pkg/store"
	"github.com/jobradar/jobradar/server"
)

const defaultConfigPath = "jobradar.yml"

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"jobradar.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting jobradar version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] jobradar failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires all collaborators and drives the server until ctx is done
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init repositories: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	feedParser := feed.NewParser(cfg.Feed.Timeout, cfg.Feed.UserAgent)
	analyzer := analysis.NewAnalyzer(cfg.GetLLMConfig())

	st := store.New(feedParser, analyzer, cfg.FeedDefaults())
	st.SetPipeline(feed.Deduplicate, relevance.Classify)
	defer st.Close()

	// restore persisted state from the previous session
	if snap, found, err := repos.Snapshot.Load(ctx); err != nil {
		log.Printf("[WARN] failed to load snapshot: %v", err)
	} else if found {
		st.RestoreSnapshot(snap)
		log.Printf("[INFO] restored snapshot: %d selected, %d analysis results",
			len(snap.SelectedArticles), len(snap.AnalysisResults))
	}

	srv := server.New(cfg, st, feedParser, repos.Snapshot, revision, opts.Debug)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		st.Close()
		// final snapshot on the way out, best effort
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repos.Snapshot.Save(saveCtx, st.ToSnapshot()); err != nil {
			log.Printf("[WARN] failed to save final snapshot: %v", err)
		}
		return nil
	})

	return g.Wait()
}

// loadConfig reads the config file. A missing file at the default path is
// fine and falls back to built-in defaults, an explicitly given path must
// exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == defaultConfigPath {
			log.Printf("[WARN] config file %s not found, using defaults", path)
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file %s not found", path)
	}
	return config.Load(path)
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

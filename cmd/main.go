package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"qiime2its/internal/api"
	"qiime2its/internal/config"
	fileutil "qiime2its/internal/file"
	"qiime2its/internal/run"
	"qiime2its/internal/runner"
)

const usage = `usage: qiime2its [-config config.yml] <command> [flags]

commands:
  run    -input DIR [-paired] [-dry-run]   run the pipeline once and exit
  serve                                     serve the run API over HTTP
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "config.yml", "path to YAML config")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.LogLevel)

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	switch flag.Arg(0) {
	case "run":
		os.Exit(runOnce(cfg, flag.Args()[1:]))
	case "serve":
		serve(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func setLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		log.Warn().Str("log_level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func newRunner(cfg config.Config) runner.Runner { //nolint:ireturn
	if cfg.Pipeline.DryRun {
		log.Info().Msg("dry run: external programs are logged, not executed")
		return runner.NewDryRunner()
	}
	return runner.NewExecRunner()
}

func buildRunManager(cfg config.Config) *run.Manager {
	rm := run.NewManager(run.Options{
		DataDir:           cfg.DataDir,
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		Runner:            newRunner(cfg),
		Tools:             cfg.Tools,
		Pipeline:          cfg.Pipeline,
	})
	if err := rm.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("load previous runs")
	}
	return rm
}

// runOnce executes a single run in the foreground and returns the exit code.
func runOnce(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	input := fs.String("input", "", "directory of demultiplexed fastq files")
	paired := fs.Bool("paired", cfg.Pipeline.Paired, "paired-end reads (R1/R2 per sample)")
	dryRun := fs.Bool("dry-run", cfg.Pipeline.DryRun, "log commands instead of running them")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" {
		fs.Usage()
		log.Error().Msg("-input is required")
		return 2
	}
	cfg.Pipeline.DryRun = *dryRun
	cfg.MaxConcurrentRuns = 1

	rm := buildRunManager(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rm.SetBaseContext(ctx)

	submitted, err := rm.Submit(run.Input{InputDir: *input, Paired: paired})
	if err != nil {
		log.Error().Err(err).Msg("submit run")
		return 1
	}
	rm.WaitAll(context.Background())

	finished, _ := rm.Get(submitted.ID)
	for _, st := range finished.Stages {
		if st.Failed() {
			log.Warn().Str("stage", st.Name).Int("failures", len(st.Failures)).Str("error", st.Error).Msg("stage failed")
		}
	}
	log.Info().
		Str("run_id", finished.ID).
		Str("status", string(finished.Status)).
		Str("output_dir", finished.OutputDir).
		Str("bundle", finished.BundlePath).
		Msg("run finished")
	if finished.Status != run.StatusReady {
		return 1
	}
	return 0
}

func serve(cfg config.Config) {
	router := setupRouter()
	runManager := buildRunManager(cfg)
	api.NewAPI(runManager).RegisterRoutes(router)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	runManager.SetBaseContext(baseCtx)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("serving run API")

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, runManager, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, rm *run.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := rm.WaitAll(ctx)
	if !done {
		log.Warn().Msg("background runs did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/coaching-scheduler/internal/application"
	"github.com/example/coaching-scheduler/internal/config"
	httptransport "github.com/example/coaching-scheduler/internal/http"
	"github.com/example/coaching-scheduler/internal/logging"
	"github.com/example/coaching-scheduler/internal/metrics"
	"github.com/example/coaching-scheduler/internal/persistence/sqlite"
)

const usage = `usage:
  scheduler                      start the scheduling store API
  scheduler hash-assigner-key    read an assigner key from stdin and print its argon2id hash
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "scheduler:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return serve(ctx, stdout)
	}
	switch args[0] {
	case "hash-assigner-key":
		return hashAssignerKey(stdin, stdout)
	case "-h", "--help", "help":
		_, err := io.WriteString(stdout, usage)
		return err
	default:
		_, _ = io.WriteString(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func hashAssignerKey(stdin io.Reader, stdout io.Writer) error {
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(key) == "" {
		return errors.New("assigner key must not be empty")
	}
	hash, err := application.CreateKeyHash(key, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func serve(ctx context.Context, stdout io.Writer) error {
	if _, err := config.LoadEnvFile(os.Getenv("SCHEDULER_ENV_FILE")); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(stdout, cfg.LogLevel)

	storage, err := sqlite.Open(cfg.SQLitePath, sqlite.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open storage", "error", err, "path", cfg.SQLitePath)
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		return err
	}

	authenticator, err := application.NewAssignerAuthenticator(cfg.AssignerKeyHash)
	if err != nil {
		logger.Error("invalid assigner key hash", "error", err)
		return err
	}

	registry := metrics.New(true)
	handler := newHandler(handlerDeps{
		Storage:       storage,
		Authenticator: authenticator,
		Metrics:       registry,
		Now:           time.Now,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduling store listening", "addr", server.Addr, "database", cfg.SQLitePath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("scheduling store stopped")
	return nil
}

type handlerDeps struct {
	Storage       *sqlite.Storage
	Authenticator httptransport.AssignerAuthenticator
	Metrics       *metrics.Registry
	Now           func() time.Time
	Logger        *slog.Logger
}

// newHandler assembles the full HTTP stack on top of storage.
func newHandler(deps handlerDeps) http.Handler {
	service := application.NewScheduleServiceWithLogger(newScheduleRepositoryAdapter(deps.Storage), deps.Now, deps.Logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules: httptransport.NewScheduleHandler(service, deps.Logger),
		Assigner:  httptransport.RequireAssignerKey(deps.Authenticator, deps.Logger),
		Health:    deps.Storage,
		Metrics:   deps.Metrics.Handler(),
		Logger:    deps.Logger,
	})

	return httptransport.RequestLogger(deps.Logger, deps.Metrics)(router)
}

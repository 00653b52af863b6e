// Command streamlogd runs a single writer-mode log and its admin HTTP
// surface, standing in for the full supervision tree (task registry,
// SASL listener, per-connection request handling) a production
// deployment would add around it.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lipandr/streamlog/internal/adminhttp"
	"github.com/lipandr/streamlog/internal/counters"
	streamlog "github.com/lipandr/streamlog/internal/log"
	"github.com/lipandr/streamlog/internal/logging"
	"github.com/lipandr/streamlog/internal/replica"
)

func main() {
	var (
		dir         = flag.String("dir", "./data/demo", "log directory")
		name        = flag.String("name", "demo", "log name")
		epoch       = flag.Uint64("epoch", 1, "leader epoch to open at")
		maxSegment  = flag.Uint64("max-segment-bytes", 0, "segment rollover threshold in bytes (0 = default)")
		httpAddr    = flag.String("http-addr", ":8080", "admin HTTP listen address")
		replAddr    = flag.String("repl-addr", ":9090", "replication TCP listen address")
		maxAge      = flag.Duration("retention-max-age", 0, "delete segments older than this (0 = disabled)")
		maxBytes    = flag.Uint64("retention-max-bytes", 0, "delete segments once the log exceeds this many bytes (0 = disabled)")
		development = flag.Bool("dev", false, "use development (console) logging")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Development: *development, Level: "info"})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := streamlog.Config{Dir: *dir, Name: *name, Epoch: *epoch}
	cfg.Segment.MaxSize = *maxSegment

	l, err := streamlog.Open(cfg, streamlog.RoleWriter, logger)
	if err != nil {
		logger.Fatal("open log", zap.Error(err))
	}
	defer l.Close()

	registry := counters.NewRegistry()
	lc := registry.Log(*name)
	lc.NextOffset.Store(l.NextOffset())
	lc.Epoch.Store(l.Epoch())

	rules := []streamlog.RetentionSpec{{MaxBytes: *maxBytes, MaxAge: *maxAge}}

	admin := adminhttp.NewServer(registry, logging.Component(logger, "adminhttp"))
	admin.Register(*name, adminhttp.Entry{
		Dir:         *dir,
		Retention:   rules,
		FirstOffset: l.FirstOffset,
	})

	srv := &http.Server{Addr: *httpAddr, Handler: admin}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin http server stopped", zap.Error(err))
		}
	}()

	leaderServer := &replica.LeaderServer{
		Dir:       *dir,
		Committed: l.NextOffset,
		Logger:    logging.Component(logger, "replica-leader"),
	}
	go func() {
		if err := leaderServer.ListenAndServe(*replAddr); err != nil {
			logger.Error("replication server stopped", zap.Error(err))
		}
	}()

	logger.Info("streamlogd started",
		zap.String("dir", *dir),
		zap.String("http_addr", *httpAddr),
		zap.String("repl_addr", *replAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("streamlogd stopped")
}

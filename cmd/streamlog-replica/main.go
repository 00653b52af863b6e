// Command streamlog-replica runs a single acceptor-mode log, reconciling
// against and then streaming from a streamlogd leader.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	streamlog "github.com/lipandr/streamlog/internal/log"
	"github.com/lipandr/streamlog/internal/logging"
	"github.com/lipandr/streamlog/internal/replica"
)

func main() {
	var (
		dir         = flag.String("dir", "./data/demo-replica", "log directory")
		name        = flag.String("name", "demo", "log name")
		epoch       = flag.Uint64("epoch", 1, "epoch this replica is following")
		leaderRepl  = flag.String("leader-repl-addr", "localhost:9090", "leader replication TCP address")
		leaderOverview = flag.String("leader-overview-url", "http://localhost:8080/logs/demo/overview", "leader admin overview URL")
		development = flag.Bool("dev", false, "use development (console) logging")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Development: *development, Level: "info"})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := streamlog.Config{Dir: *dir, Name: *name, Epoch: *epoch}
	conn := &replica.TCPLeaderConn{ReplAddr: *leaderRepl, OverviewURL: *leaderOverview}

	follower, err := replica.NewFollower(cfg, conn, logging.Component(logger, "replica-follower"))
	if err != nil {
		logger.Fatal("open follower", zap.Error(err))
	}
	defer follower.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("streamlog-replica started", zap.String("dir", *dir), zap.String("leader_repl_addr", *leaderRepl))
	if err := follower.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("follower stopped", zap.Error(err))
	}
	logger.Info("streamlog-replica stopped", zap.Uint64("next_offset", follower.NextOffset()))
}

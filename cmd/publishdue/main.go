// Command publishdue publishes every due approved or scheduled tweet once and
// exits. It is meant to be run by an external scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/tweetdesk/internal/app"
	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/bilgisen/tweetdesk/internal/logger"
)

func main() {
	cfg := config.Load()

	limit := flag.Int("limit", cfg.PublishDueLimit, "maximum tweets to publish in this run")
	timeout := flag.Duration("timeout", 5*time.Minute, "deadline for the whole sweep")
	flag.Parse()

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	components, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer components.Close()

	sum, err := components.Tweets.PublishDue(ctx, time.Now(), *limit)
	if err != nil {
		log.Error().Err(err).
			Int("attempted", sum.Attempted).
			Int("posted", sum.Posted).
			Int("failed", sum.Failed).
			Msg("Publish-due sweep aborted")
		components.Close()
		os.Exit(1)
	}
	if sum.Failed > 0 {
		components.Close()
		os.Exit(2)
	}
}

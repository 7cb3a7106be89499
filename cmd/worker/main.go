package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"timeclock/internal/chat"
	"timeclock/internal/config"
	"timeclock/internal/idle"
	"timeclock/internal/queue"
	"timeclock/internal/store"
	"timeclock/pkg/logger"
)

// Worker consumes idle notices from the redis queue and delivers them to
// users through the chat service. Run it only with QUEUE_BACKEND=redis;
// with the in-memory queue the gateway delivers notices itself.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogFile)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Fatalw("redis not reachable", "addr", cfg.RedisAddr)
	}
	q := queue.NewRedisQueue(redisClient.Client, "timeclock:notices")

	chatClient := chat.New(cfg.ChatServiceURL, cfg.ChatSkip)
	if !cfg.ChatSkip {
		if err := chatClient.Health(ctx); err != nil {
			log.Warnw("chat service not available, will retry per notice", "err", err)
		} else {
			log.Info("chat service connected")
		}
	}

	log.Info("worker started, waiting for notices")
	if err := idle.Deliver(ctx, q, chatClient, log); err != nil {
		log.Fatalw("delivery loop failed", "err", err)
	}
	log.Info("worker stopped")
}

package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/alfreddev/connpool/pool"
	"github.com/alfreddev/connpool/redisclient"
)

// snapshotPublisher periodically publishes a JSON snapshot of every live
// destination queue to a Redis pub/sub channel, so a fleet-wide dashboard
// can aggregate pool state across instances without each one exposing
// /pools to a central scraper directly. Grounded on the teacher's
// redisclient.New (URL parsing, ping-on-connect) and
// provider.HealthPoller's ticker-driven background loop.
type snapshotPublisher struct {
	rdb      *redis.Client
	manager  *pool.ConnectionManager
	logger   zerolog.Logger
	interval time.Duration
	channel  string

	cancel context.CancelFunc
	done   chan struct{}
}

func newSnapshotPublisher(redisURL string, manager *pool.ConnectionManager, logger zerolog.Logger, interval time.Duration) (*snapshotPublisher, error) {
	rdb, err := redisclient.New(redisURL)
	if err != nil {
		return nil, err
	}

	if interval < time.Second {
		interval = time.Second
	}
	return &snapshotPublisher{
		rdb:      rdb,
		manager:  manager,
		logger:   logger.With().Str("component", "snapshot_publisher").Logger(),
		interval: interval,
		channel:  "connpool:snapshots",
		done:     make(chan struct{}),
	}, nil
}

func (p *snapshotPublisher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *snapshotPublisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	_ = p.rdb.Close()
}

func (p *snapshotPublisher) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publish(ctx)
		}
	}
}

func (p *snapshotPublisher) publish(ctx context.Context) {
	payload, err := json.Marshal(p.manager.Snapshot())
	if err != nil {
		p.logger.Error().Err(err).Msg("marshal snapshot")
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn().Err(err).Msg("publish snapshot")
	}
}

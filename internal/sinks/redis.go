package sinks

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"logpipeline/internal/config"
	"logpipeline/pkg/perr"
	"logpipeline/pkg/record"
	"logpipeline/pkg/serializer"
)

// Redis delivers batches to one of three structures selected by
// dataStructure: list (LPUSH), stream (XADD), or pubsub (PUBLISH).
// Connection loss is handled by a background reconnect loop with
// unbounded, logged, exponentially-backed-off attempts — separate from
// the shared retry manager, which governs per-batch delivery attempts.
type Redis struct {
	cfg   config.RedisConfig
	key   string
	ser   *serializer.Serializer
	level record.Level

	client      redis.UniversalClient
	logger      *logrus.Logger
	connected   atomic.Bool
	reconnectMu sync.Mutex
	stopCh      chan struct{}
}

// NewRedis builds a Redis sink and starts its connection-lifecycle
// management: an initial connect attempt followed by a background
// reconnect loop on disconnect.
func NewRedis(cfg config.RedisConfig, logger *logrus.Logger) (*Redis, error) {
	r := &Redis{
		cfg:    cfg,
		key:    cfg.KeyPrefix + cfg.ListName,
		ser:    serializer.New(serializer.Config{Format: serializer.FormatJSON}),
		level:  sinkLevel(cfg.Level),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	r.client = r.newClient()

	ctx, cancel := context.WithTimeout(context.Background(), r.connectTimeout())
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.connected.Store(false)
		if logger != nil {
			logger.WithError(err).Warn("redis sink initial connect failed, will retry in background")
		}
	} else {
		r.connected.Store(true)
	}

	go r.reconnectLoop()
	return r, nil
}

func (r *Redis) connectTimeout() time.Duration {
	if r.cfg.ConnectTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.cfg.ConnectTimeoutMs) * time.Millisecond
}

func (r *Redis) commandTimeout() time.Duration {
	if r.cfg.CommandTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.cfg.CommandTimeoutMs) * time.Millisecond
}

func (r *Redis) newClient() redis.UniversalClient {
	var tlsCfg *tls.Config
	if r.cfg.EnableTLS {
		built, err := createTLSConfig(TLSConfig{Enabled: true})
		if err != nil && r.logger != nil {
			r.logger.WithError(err).Warn("redis sink falling back to default TLS config")
		}
		if built != nil {
			tlsCfg = built
		} else {
			tlsCfg = &tls.Config{}
		}
	}

	opts := &redis.UniversalOptions{
		Addrs:        []string{fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)},
		Password:     r.cfg.Password,
		DB:           r.cfg.Database,
		MaxRetries:   r.cfg.MaxRetries,
		DialTimeout:  r.connectTimeout(),
		ReadTimeout:  r.commandTimeout(),
		WriteTimeout: r.commandTimeout(),
		TLSConfig:    tlsCfg,
	}
	if r.cfg.EnableCluster {
		return redis.NewClusterClient(opts.Cluster())
	}
	return redis.NewClient(opts.Simple())
}

// reconnectLoop watches connectivity and retries with exponential
// backoff (capped, unbounded attempt count) whenever the connection is
// down. It is independent of the shared retry manager, which governs
// per-batch delivery rather than connection lifecycle.
func (r *Redis) reconnectLoop() {
	delay := 500 * time.Millisecond
	const maxDelay = 30 * time.Second

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if r.connected.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), r.connectTimeout())
			err := r.client.Ping(ctx).Err()
			cancel()

			if err == nil {
				r.connected.Store(true)
				delay = 500 * time.Millisecond
				ticker.Reset(delay)
				if r.logger != nil {
					r.logger.Info("redis sink reconnected")
				}
				continue
			}

			if r.logger != nil {
				r.logger.WithError(err).Warn("redis sink reconnect attempt failed")
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			ticker.Reset(delay)
		}
	}
}

func (r *Redis) Name() string { return "redis" }

// Send fails fast when the connection is known down, so the queue
// buffers and the breaker sees the failure rather than blocking on a
// dead connection.
func (r *Redis) Send(ctx context.Context, batch []record.Record) error {
	if !r.connected.Load() {
		return perr.New(perr.ClassTransientTransport, "redis", "send", "not connected")
	}

	batch = filterByLevel(batch, r.level)
	if len(batch) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.commandTimeout())
	defer cancel()

	var err error
	switch r.cfg.DataStructure {
	case "stream":
		err = r.sendStream(cctx, batch)
	case "pubsub":
		err = r.sendPubsub(cctx, batch)
	default:
		err = r.sendList(cctx, batch)
	}

	if err != nil {
		r.connected.Store(false)
		return perr.Wrap(perr.ClassTransientTransport, "redis", "send", err)
	}
	return nil
}

func (r *Redis) sendList(ctx context.Context, batch []record.Record) error {
	values := make([]interface{}, len(batch))
	for i, rec := range batch {
		values[i] = r.ser.Serialize(rec)
	}
	return r.client.LPush(ctx, r.key, values...).Err()
}

func (r *Redis) sendStream(ctx context.Context, batch []record.Record) error {
	for _, rec := range batch {
		err := r.client.XAdd(ctx, &redis.XAddArgs{
			Stream: r.key,
			Values: map[string]interface{}{"record": string(r.ser.Serialize(rec))},
		}).Err()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) sendPubsub(ctx context.Context, batch []record.Record) error {
	for _, rec := range batch {
		if err := r.client.Publish(ctx, r.key, r.ser.Serialize(rec)).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Flush(ctx context.Context) error { return nil }

func (r *Redis) Close(ctx context.Context) error {
	close(r.stopCh)
	return r.client.Close()
}

func (r *Redis) IsHealthy() bool { return r.connected.Load() }

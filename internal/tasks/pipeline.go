// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/logging"
)

// Pipeline assembles the task transport: embedded broker (optional),
// stream, publisher, per-queue subscribers, and the router. Handlers
// attach through Handle before Serve starts the router.
type Pipeline struct {
	config    config.TasksConfig
	logger    watermill.LoggerAdapter
	server    *EmbeddedServer
	conn      *natsgo.Conn
	publisher *Publisher
	router    *Router
	poisonLog *PoisonLog
	caller    *ExternalCaller

	subscribers []*Subscriber
}

// NewPipeline starts the broker (when embedded), provisions the task
// stream, and builds the publisher and router. No handler runs until
// Serve.
func NewPipeline(cfg config.TasksConfig) (*Pipeline, error) {
	logger := NewWatermillLogger()

	p := &Pipeline{
		config:    cfg,
		logger:    logger,
		poisonLog: NewPoisonLog(DefaultPoisonLogConfig()),
	}

	url := cfg.URL
	if cfg.EmbeddedServer {
		serverCfg := DefaultServerConfig()
		serverCfg.StoreDir = cfg.StoreDir
		serverCfg.JetStreamMaxMem = cfg.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.MaxStore

		server, err := NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded broker: %w", err)
		}
		p.server = server
		url = server.ClientURL()
	}

	if err := p.ensureStream(url); err != nil {
		p.shutdownServer()
		return nil, err
	}

	publisher, err := NewPublisher(DefaultPublisherConfig(url), logger)
	if err != nil {
		p.shutdownServer()
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	p.publisher = publisher

	routerCfg := DefaultRouterConfig()
	routerCfg.CloseTimeout = cfg.CloseTimeout
	routerCfg.RetryMaxRetries = cfg.RetryCount
	routerCfg.RetryInitialInterval = cfg.RetryInitialInterval
	if !cfg.PoisonQueueEnabled {
		routerCfg.PoisonQueueTopic = ""
	} else if cfg.PoisonQueueTopic != "" {
		routerCfg.PoisonQueueTopic = cfg.PoisonQueueTopic
	}

	var poisonPub message.Publisher
	if cfg.PoisonQueueEnabled {
		poisonPub = publisher.WatermillPublisher()
	}

	router, err := NewRouter(&routerCfg, poisonPub, logger)
	if err != nil {
		p.shutdownServer()
		return nil, fmt.Errorf("create router: %w", err)
	}
	p.router = router

	p.caller = NewExternalCaller(BreakerConfig{
		Name:             "external_api",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		RatePerSecond:    cfg.ExternalAPIRate,
		Burst:            cfg.ExternalAPIBurst,
	})

	// The poison log consumes its own topic so exhausted tasks stay
	// visible to the monitoring API.
	if cfg.PoisonQueueEnabled {
		if err := p.attachPoisonConsumer(url); err != nil {
			p.shutdownServer()
			return nil, err
		}
	}

	p.config.URL = url
	return p, nil
}

func (p *Pipeline) ensureStream(url string) error {
	conn, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	p.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := DefaultStreamConfig()
	initializer, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := initializer.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) attachPoisonConsumer(url string) error {
	subCfg := DefaultSubscriberConfig(url, QueuePoison)
	sub, err := NewSubscriber(&subCfg, p.logger)
	if err != nil {
		return fmt.Errorf("create poison subscriber: %w", err)
	}
	p.subscribers = append(p.subscribers, sub)

	p.router.AddConsumerHandler(
		"tasks-poison-log",
		TopicFor(QueuePoison),
		sub.WatermillSubscriber(),
		p.poisonLog.Handler(),
	)
	return nil
}

// Handle attaches a task handler to a queue with the configured
// concurrency. Must be called before Serve.
func (p *Pipeline) Handle(queue string, handler TaskHandler) error {
	subCfg := DefaultSubscriberConfig(p.config.URL, queue)
	subCfg.SubscribersCount = p.workersFor(queue)

	sub, err := NewSubscriber(&subCfg, p.logger)
	if err != nil {
		return err
	}
	p.subscribers = append(p.subscribers, sub)

	if _, err := p.router.AddQueueHandler(queue, sub.WatermillSubscriber(), handler); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) workersFor(queue string) int {
	workers := map[string]int{
		QueueCritical:     p.config.CriticalWorkers,
		QueueHighPriority: p.config.HighPriorityWorkers,
		QueueEmail:        p.config.EmailWorkers,
		QueueReports:      p.config.ReportsWorkers,
		QueueExternalAPI:  p.config.ExternalAPIWorkers,
		QueueMaintenance:  p.config.MaintenanceWorkers,
	}[queue]
	if workers <= 0 {
		workers = 1
	}
	return workers
}

// Publisher returns the task publisher for enqueueing.
func (p *Pipeline) Publisher() *Publisher {
	return p.publisher
}

// PoisonLog returns the poison log for the monitoring API.
func (p *Pipeline) PoisonLog() *PoisonLog {
	return p.poisonLog
}

// ExternalCaller returns the guarded caller for external_api handlers.
func (p *Pipeline) ExternalCaller() *ExternalCaller {
	return p.caller
}

// Serve runs the router until context cancellation. Matches the suture
// service signature.
func (p *Pipeline) Serve(ctx context.Context) error {
	logging.Info().
		Str("url", p.config.URL).
		Bool("embedded", p.server != nil).
		Msg("Task pipeline starting")
	return p.router.Run(ctx)
}

func (p *Pipeline) String() string { return "tasks.pipeline" }

// Healthy reports transport health for readiness checks.
func (p *Pipeline) Healthy() bool {
	if p.server != nil && !p.server.IsRunning() {
		return false
	}
	return p.conn != nil && p.conn.IsConnected()
}

// Close tears the pipeline down: router first (stops consumption),
// then publisher, connection, and finally the embedded broker.
func (p *Pipeline) Close() error {
	var firstErr error

	if err := p.router.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, sub := range p.subscribers {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.shutdownServer()
	return firstErr
}

func (p *Pipeline) shutdownServer() {
	if p.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded broker shutdown error")
	}
}

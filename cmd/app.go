package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/taskgraph/engine/internal/breaker"
	"github.com/taskgraph/engine/internal/config"
	"github.com/taskgraph/engine/internal/cronsched"
	"github.com/taskgraph/engine/internal/dag/executor"
	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/orchestrator"
	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/queue/memqueue"
	"github.com/taskgraph/engine/internal/queue/redisqueue"
	"github.com/taskgraph/engine/internal/store"
	"github.com/taskgraph/engine/internal/store/memstore"
	"github.com/taskgraph/engine/internal/store/sqlitestore"
	"github.com/taskgraph/engine/internal/taskrun"
)

// attemptQueueKey names the sorted set redisqueue uses when REDIS_URL is
// configured. One queue serves both task-attempt and orchestrate messages,
// matching queue.Queue's single-stream contract.
const attemptQueueKey = "taskgraph:queue"

// app wires together every long-lived dependency a cmd subcommand needs.
// Each subcommand constructs its own app and closes it before returning.
type app struct {
	cfg     *config.Config
	logger  logger.Logger
	store   store.Store
	queue   queue.Queue
	breaker breaker.Breaker

	runner *taskrun.Runner
	orch   *orchestrator.Orchestrator
	sched  *cronsched.Scheduler
}

// newApp loads configuration and constructs every dependency an app needs,
// selecting the in-memory or Redis-backed queue/breaker implementations
// based on cfg.RedisURL and the in-memory or SQLite store based on
// cfg.DBURL, matching the teacher's newDataStores/newClient wiring style.
func newApp(cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logOpts = append(logOpts, logger.WithDebug())
	}
	lg := logger.NewLogger(logOpts...)

	st, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	q, br, err := newQueueAndBreaker(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := executor.NewDefaultRegistry()
	registry.Freeze()

	runner := taskrun.New(st, registry, br, q)
	orch := orchestrator.New(st, q)
	sched := cronsched.New(st, q)

	return &app{
		cfg:     cfg,
		logger:  lg,
		store:   st,
		queue:   q,
		breaker: br,
		runner:  runner,
		orch:    orch,
		sched:   sched,
	}, nil
}

func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBURL == "" || cfg.DBURL == "memory" {
		return memstore.New(), nil
	}
	return sqlitestore.New(cfg.DBURL)
}

func newQueueAndBreaker(cfg *config.Config) (queue.Queue, breaker.Breaker, error) {
	if cfg.RedisURL == "" {
		return memqueue.New(), breaker.NewMemoryBreaker(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return redisqueue.New(client, attemptQueueKey), breaker.NewRedisBreaker(client), nil
}

// Close releases every resource the app opened.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.queue.Close())
}

// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler implements the dropbox daemon's scheduling loop: a
// gocron-driven set of three periodic jobs feeding two bounded worker
// pools.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/internal/constants"
	"github.com/stratastor/dropboxd/pkg/dropbox"
	"github.com/stratastor/dropboxd/pkg/errors"
	"github.com/stratastor/dropboxd/pkg/txn"
)

// Config carries the scheduler's runtime knobs. It is a flat struct
// (rather than a dependency on the config package) so cmd/serve can build
// one straight off config.Config without an import cycle.
type Config struct {
	Host string
	DSN  string

	LogConfig       logger.Config
	PrivilegedGroup string
	AuthCacheTTL    time.Duration

	CheckDropboxesEvery    time.Duration
	CheckPackagesEvery     time.Duration
	CheckTransactionsEvery time.Duration

	NumUpdateThreads    int
	NumOperationThreads int
}

func (c Config) updateThreads() int {
	return clampPoolSize(c.NumUpdateThreads)
}

func (c Config) operationThreads() int {
	return clampPoolSize(c.NumOperationThreads)
}

func clampPoolSize(n int) int {
	if n <= 0 {
		return 4
	}
	if n > constants.MaxWorkerPoolSize {
		return constants.MaxWorkerPoolSize
	}
	return n
}

// task is one unit of work pushed onto a worker pool's queue. A nil task
// is the shutdown sentinel: receiving it tells a worker to return.
type task func(ctx context.Context)

// Scheduler drives the three periodic jobs and two worker pools. Each
// worker opens its own *txn.Store (hence its own *sql.DB session) per
// task and closes it on return.
type Scheduler struct {
	cfg    Config
	finder *dropbox.Finder
	log    logger.Logger
	authz  *txn.Authorizer

	cron gocron.Scheduler

	updateQueue    chan task
	operationQueue chan task

	updateWG    sync.WaitGroup
	operationWG sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Scheduler over finder, which owns the set of known
// dropboxes discovered from cfg's search roots.
func New(cfg Config, finder *dropbox.Finder) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerError)
	}
	l, err := logger.NewTag(cfg.LogConfig, "scheduler")
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerError)
	}
	if cfg.CheckDropboxesEvery == 0 {
		cfg.CheckDropboxesEvery, _ = time.ParseDuration(constants.DefaultCheckDropboxesEvery)
	}
	if cfg.CheckPackagesEvery == 0 {
		cfg.CheckPackagesEvery, _ = time.ParseDuration(constants.DefaultCheckPackagesEvery)
	}
	if cfg.CheckTransactionsEvery == 0 {
		cfg.CheckTransactionsEvery, _ = time.ParseDuration(constants.DefaultCheckTransactionsEvery)
	}
	if cfg.AuthCacheTTL == 0 {
		cfg.AuthCacheTTL, _ = time.ParseDuration(constants.DefaultAuthCacheTTL)
	}

	return &Scheduler{
		cfg:            cfg,
		finder:         finder,
		log:            l,
		authz:          txn.NewAuthorizer(cfg.AuthCacheTTL),
		cron:           cron,
		updateQueue:    make(chan task, constants.MaxUpdateQueueScheduleTasks*4),
		operationQueue: make(chan task, constants.MaxUpdateQueueScheduleTasks*4),
	}, nil
}

// Start launches the worker pools, registers the three periodic jobs, and
// starts the cron loop. The returned error is nil unless job registration
// itself fails; day-to-day task failures are logged, not returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.updateThreads(); i++ {
		s.updateWG.Add(1)
		go s.runWorker(&s.updateWG, s.updateQueue)
	}
	for i := 0; i < s.cfg.operationThreads(); i++ {
		s.operationWG.Add(1)
		go s.runWorker(&s.operationWG, s.operationQueue)
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.CheckDropboxesEvery),
		gocron.NewTask(s.scheduleDropboxUpdate),
		gocron.WithName("check.dropboxes_every"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return errors.Wrap(err, errors.SchedulerError)
	}
	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.CheckPackagesEvery),
		gocron.NewTask(s.schedulePackageChangeHandling),
		gocron.WithName("check.packages_every"),
	); err != nil {
		return errors.Wrap(err, errors.SchedulerError)
	}
	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.CheckTransactionsEvery),
		gocron.NewTask(s.scheduleTransactionCheck),
		gocron.WithName("check.transactions_every"),
	); err != nil {
		return errors.Wrap(err, errors.SchedulerError)
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		"update_threads", s.cfg.updateThreads(),
		"operation_threads", s.cfg.operationThreads())
	return nil
}

// Stop cancels all workers, pushes one shutdown sentinel per worker so
// blocked queue receives return, then joins with a periodic "still
// waiting" log.
func (s *Scheduler) Stop() error {
	s.log.Info("stopping scheduler")
	if err := s.cron.Shutdown(); err != nil {
		s.log.Error("error stopping cron loop", "error", err)
	}
	if s.cancel != nil {
		s.cancel()
	}

	for i := 0; i < s.cfg.updateThreads(); i++ {
		s.updateQueue <- nil
	}
	for i := 0; i < s.cfg.operationThreads(); i++ {
		s.operationQueue <- nil
	}

	done := make(chan struct{})
	go func() {
		s.updateWG.Wait()
		s.operationWG.Wait()
		close(done)
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			s.log.Info("scheduler stopped cleanly")
			return nil
		case <-ticker.C:
			s.log.Warn("still waiting for scheduler workers to drain")
		}
	}
}

// runWorker pulls tasks off q until it receives the nil sentinel.
func (s *Scheduler) runWorker(wg *sync.WaitGroup, q chan task) {
	defer wg.Done()
	for t := range q {
		if t == nil {
			return
		}
		t(s.ctx)
	}
}

// enqueue pushes t onto q, logging (rather than blocking forever) if the
// pool is saturated past its buffer.
func (s *Scheduler) enqueue(q chan task, t task, poolName string) {
	select {
	case q <- t:
	default:
		s.log.Warn("worker pool saturated, dropping task this cycle", "pool", poolName)
	}
}

// openStore opens a fresh per-task database session: each worker's task
// gets its own *sql.DB-backed Store, closed on return rather than shared
// across tasks.
func (s *Scheduler) openStore() (*txn.Store, error) {
	return txn.Open(s.cfg.DSN, s.cfg.LogConfig)
}

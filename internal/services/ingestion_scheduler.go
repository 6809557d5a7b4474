package services

import (
	"context"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"sync"
)

type ingester interface {
	Ingest(ctx context.Context, modules []string) entities.Report
	IngestAll(ctx context.Context) entities.Report
}

// IngestionScheduler runs ingestion cycles on a cron schedule and on demand. At
// most one cycle runs at a time: a cycle due while another is in progress is
// skipped. An empty schedule leaves only RunOnce and Trigger.
type IngestionScheduler struct {
	ingester ingester
	cron     *cron.Cron
	running  sync.Mutex
	inFlight sync.WaitGroup
}

func NewIngestionScheduler(ingester ingester, schedule string) (*IngestionScheduler, error) {

	if ingester == nil {
		return nil, errors.New("ingester is nil")
	}

	is := &IngestionScheduler{
		ingester: ingester,
		cron:     cron.New(),
	}

	if schedule == "" {
		return is, nil
	}
	if _, err := is.cron.AddFunc(schedule, is.RunOnce); err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	return is, nil
}

func (is *IngestionScheduler) Start() {
	is.cron.Start()
	log.Info("ingestion scheduler started")
}

// Stop prevents new scheduled cycles and waits for the running one to finish.
func (is *IngestionScheduler) Stop() {
	<-is.cron.Stop().Done()
	is.inFlight.Wait()
}

// RunOnce runs a full cycle unless one is already in progress.
func (is *IngestionScheduler) RunOnce() {
	if !is.running.TryLock() {
		log.Warn("previous ingestion cycle still running, skipping")
		return
	}
	is.inFlight.Add(1)
	is.run(nil)
}

// Trigger starts a cycle over modules in the background, or over every module
// when none are given. It returns false without starting anything when a
// cycle is already in progress.
func (is *IngestionScheduler) Trigger(modules []string) bool {
	if !is.running.TryLock() {
		return false
	}
	is.inFlight.Add(1)
	go is.run(modules)
	return true
}

// run expects the running lock to be held and releases it.
func (is *IngestionScheduler) run(modules []string) {
	defer is.inFlight.Done()
	defer is.running.Unlock()

	var report entities.Report
	if len(modules) == 0 {
		report = is.ingester.IngestAll(context.Background())
	} else {
		report = is.ingester.Ingest(context.Background(), modules)
	}
	log.Infof("ingestion done: added %d, total %d, failed %d",
		report.Added, report.Total, len(report.FailedScrapers))
}

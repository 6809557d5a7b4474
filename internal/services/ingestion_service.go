package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/maxaizer/jobfeed/internal/events"
	"github.com/maxaizer/jobfeed/internal/logger"
	"github.com/maxaizer/jobfeed/internal/metrics"
	"github.com/maxaizer/jobfeed/internal/sources"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"time"
)

// GeneralModule names the report entry used for failures that are not tied to
// one source, such as the store becoming unavailable.
const GeneralModule = "general"

type sourceRegistry interface {
	Get(module string) (sources.Source, bool)
	Modules() []string
}

type attemptState int

const (
	attemptPending attemptState = iota
	attemptSucceeded
	attemptFailed
)

func (s attemptState) String() string {
	switch s {
	case attemptSucceeded:
		return "succeeded"
	case attemptFailed:
		return "failed"
	default:
		return "pending"
	}
}

// attempt is the outcome of one source within one ingestion call.
type attempt struct {
	module    string
	state     attemptState
	seenLinks []string
	result    reconcileResult
	stale     int
	failure   *entities.FailedSource
	storeErr  error
}

type IngestionService struct {
	registry   sourceRegistry
	store      postingsStore
	reconciler *reconciler
	advisor    Advisor
	bus        EventBus.Bus
}

// NewIngestionService wires the orchestrator. advisor and bus may be nil.
func NewIngestionService(registry sourceRegistry, store postingsStore, classifier classifier,
	advisor Advisor, bus EventBus.Bus) *IngestionService {

	if advisor == nil {
		advisor = NopAdvisor{}
	}
	return &IngestionService{
		registry:   registry,
		store:      store,
		reconciler: &reconciler{store: store, classifier: classifier},
		advisor:    advisor,
		bus:        bus,
	}
}

// IngestAll runs Ingest over every registered module.
func (s *IngestionService) IngestAll(ctx context.Context) entities.Report {
	return s.Ingest(ctx, s.registry.Modules())
}

// Ingest fetches the selected sources concurrently, reconciles what they return
// with the store and reports the outcome. Every selected source runs to the end
// regardless of its siblings; a failing source only adds an entry to
// FailedScrapers, in the order the modules were given. Cancelling ctx does not
// interrupt sources already dispatched.
func (s *IngestionService) Ingest(ctx context.Context, modules []string) entities.Report {
	startTime := time.Now()
	ctx = context.WithoutCancel(ctx)

	selected := s.selectSources(modules)
	attempts := make([]attempt, len(selected))

	var g errgroup.Group
	for i, source := range selected {
		g.Go(func() error {
			attempts[i] = s.runSource(ctx, source)
			// never cancel siblings: failures are collected in attempts
			return nil
		})
	}
	_ = g.Wait()

	s.markStale(ctx, attempts)
	report := s.buildReport(ctx, attempts)

	duration := time.Since(startTime)
	metrics.IngestionDuration.Observe(duration.Seconds())
	log.Infof("ingestion of %d modules finished in %v: added %d, total %d, failed %d",
		len(selected), duration, report.Added, report.Total, len(report.FailedScrapers))

	s.publish(events.IngestionCompletedTopic, events.IngestionCompleted{
		Modules:  lo.Map(selected, func(src sources.Source, _ int) string { return src.Name() }),
		Report:   report,
		Duration: duration,
	})
	return report
}

func (s *IngestionService) selectSources(modules []string) []sources.Source {
	selected := make([]sources.Source, 0, len(modules))
	for _, module := range lo.Uniq(modules) {
		source, ok := s.registry.Get(module)
		if !ok {
			log.WithField(logger.ModuleField, module).Warnf("unknown module %q skipped", module)
			continue
		}
		selected = append(selected, source)
	}
	return selected
}

func (s *IngestionService) runSource(ctx context.Context, source sources.Source) attempt {
	module := source.Name()
	a := attempt{module: module, state: attemptPending}
	moduleLog := log.WithField(logger.ModuleField, module)

	postings, err := s.fetch(ctx, source)
	if err == nil {
		postings = lo.Map(postings, func(p entities.Posting, _ int) entities.Posting {
			if p.Module == "" {
				p.Module = module
			}
			return p
		})
		err = sources.ValidatePostings(module, postings)
	}
	if err != nil {
		failure := s.captureFailure(ctx, source, err)
		a.state = attemptFailed
		a.failure = &failure
		return a
	}

	a.state = attemptSucceeded
	a.seenLinks = lo.Map(postings, func(p entities.Posting, _ int) string { return p.Link })
	a.result, a.storeErr = s.reconciler.reconcile(ctx, postings)
	if a.storeErr != nil {
		moduleLog.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to store postings: %v", a.storeErr)
	}

	metrics.PostingsAddedCounter.WithLabelValues(module).Add(float64(a.result.added))
	metrics.PostingsResurfacedCounter.WithLabelValues(module).Add(float64(a.result.resurfaced))
	moduleLog.Infof("fetched %d postings: %d added, %d resurfaced",
		len(postings), a.result.added, a.result.resurfaced)
	return a
}

// markStale clears is_new on the postings of every fully stored module that no
// source listed in this call. A link is one posting whichever source reports
// it, so the links of all successful sources are kept, not only the module's own.
func (s *IngestionService) markStale(ctx context.Context, attempts []attempt) {
	seen := make([]string, 0)
	for _, a := range attempts {
		if a.state == attemptSucceeded {
			seen = append(seen, a.seenLinks...)
		}
	}
	seen = lo.Uniq(seen)

	for i := range attempts {
		a := &attempts[i]
		if a.state != attemptSucceeded || a.storeErr != nil {
			continue
		}

		a.stale, a.storeErr = s.store.MarkStale(ctx, a.module, seen)
		if a.storeErr != nil {
			log.WithFields(log.Fields{
				logger.ErrorTypeField: logger.ErrorTypeDb,
				logger.ModuleField:    a.module,
			}).Errorf("failed to mark unlisted postings: %v", a.storeErr)
			continue
		}
		if a.stale > 0 {
			log.WithField(logger.ModuleField, a.module).Infof("%d postings no longer listed", a.stale)
		}
	}
}

func (s *IngestionService) fetch(ctx context.Context, source sources.Source) (postings []entities.Posting, err error) {
	start := time.Now()
	defer func() {
		metrics.SourceFetchDuration.WithLabelValues(source.Name()).Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			postings = nil
			// %+v renders the stack for the advisor, Error() stays a single line
			err = errors.WithStack(fmt.Errorf("panic: %v", r))
		}
	}()

	return source.Fetch(ctx)
}

func (s *IngestionService) buildReport(ctx context.Context, attempts []attempt) entities.Report {
	report := entities.Report{FailedScrapers: make([]entities.FailedSource, 0)}
	var storeErrs []error

	for _, a := range attempts {
		report.Added += a.result.added
		if a.state == attemptFailed {
			report.FailedScrapers = append(report.FailedScrapers, *a.failure)
		}
		if a.storeErr != nil {
			storeErrs = append(storeErrs, fmt.Errorf("%s: %w", a.module, a.storeErr))
		}
	}

	total, err := s.store.CountAll(ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to count postings: %v", err)
		storeErrs = append(storeErrs, err)
		total = 0
	}
	report.Total = total

	if len(storeErrs) > 0 {
		report.FailedScrapers = append(report.FailedScrapers, entities.FailedSource{
			Module: GeneralModule,
			Error:  "Database unavailable: " + storeErrs[0].Error(),
		})
	}
	return report
}

func (s *IngestionService) publish(topic string, event any) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}

package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/maxaizer/jobfeed/internal/events"
	"github.com/maxaizer/jobfeed/internal/logger"
	"github.com/maxaizer/jobfeed/internal/metrics"
	"github.com/maxaizer/jobfeed/internal/sources"
	log "github.com/sirupsen/logrus"
)

func (s *IngestionService) captureFailure(ctx context.Context, source sources.Source, fetchErr error) entities.FailedSource {
	module := source.Name()

	log.WithFields(log.Fields{
		logger.ErrorTypeField: logger.ErrorTypeSource,
		logger.ModuleField:    module,
	}).Errorf("source failed: %v", fetchErr)
	metrics.SourceFailuresCounter.WithLabelValues(module).Inc()

	failure := entities.FailedSource{
		Module:    module,
		Error:     fetchErr.Error(),
		Diagnosis: s.diagnose(ctx, source, fetchErr),
	}

	s.publish(events.SourceFailedTopic, events.SourceFailed{Failure: failure})
	return failure
}

// diagnose never fails the attempt: any advisor error, including a panic, means
// no diagnosis.
func (s *IngestionService) diagnose(ctx context.Context, source sources.Source, fetchErr error) (diagnosis *entities.Diagnosis) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField(logger.ModuleField, source.Name()).Errorf("advisor panicked: %v", r)
			diagnosis = nil
		}
	}()

	// %+v keeps the stack of errors created through pkg/errors
	errorTrace := fmt.Sprintf("%+v", fetchErr)

	diagnosis, err := s.advisor.Diagnose(ctx, source.Name(), errorTrace, source.Description())
	if err != nil {
		log.WithField(logger.ModuleField, source.Name()).Warnf("no diagnosis: %v", err)
		return nil
	}
	return diagnosis
}

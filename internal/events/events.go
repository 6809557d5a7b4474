package events

import (
	"github.com/maxaizer/jobfeed/internal/entities"
	"time"
)

var IngestionCompletedTopic = "IngestionCompletedEvent"

type IngestionCompleted struct {
	Modules  []string
	Report   entities.Report
	Duration time.Duration
}

var SourceFailedTopic = "SourceFailedEvent"

type SourceFailed struct {
	Failure entities.FailedSource
}

package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/maxaizer/jobfeed/internal/events"
	"github.com/maxaizer/jobfeed/internal/sources"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func newPosting(link, title string) entities.Posting {
	return entities.Posting{Link: link, Title: title, Company: "Acme", Location: "Toulouse"}
}

func newService(t *testing.T, store *memStore, advisor Advisor, srcs ...sources.Source) *IngestionService {
	registry, err := sources.NewRegistry(srcs...)
	require.NoError(t, err)
	return NewIngestionService(registry, store, NewTagger(nil), advisor, nil)
}

func Test_Ingest_WhenOneSourceFails_ShouldKeepOthersResults(t *testing.T) {
	store := newMemStore()
	x := &fakeSource{name: "X", postings: []entities.Posting{
		newPosting("https://x.example/1", "Software developer"),
		newPosting("https://x.example/2", "Satellite operator"),
	}}
	y := &fakeSource{name: "Y", err: errors.New("timeout")}
	service := newService(t, store, nil, x, y)

	report := service.Ingest(context.Background(), []string{"X", "Y"})

	assert.Equal(t, 2, report.Added)
	assert.Equal(t, int64(2), report.Total)
	assert.Equal(t, []entities.FailedSource{{Module: "Y", Error: "timeout", Diagnosis: nil}}, report.FailedScrapers)

	stored := store.get("https://x.example/1")
	require.NotNil(t, stored)
	assert.True(t, stored.IsNew)
	assert.Equal(t, "X", stored.Module)
	assert.Equal(t, []string{"software"}, stored.TagsAsArray())
}

func Test_Ingest_WhenRepeated_ShouldNotAddTwice(t *testing.T) {
	store := newMemStore()
	x := &fakeSource{name: "X", postings: []entities.Posting{
		newPosting("https://x.example/1", "Engineer"),
		newPosting("https://x.example/2", "Manager"),
	}}
	service := newService(t, store, nil, x)

	first := service.Ingest(context.Background(), []string{"X"})
	second := service.Ingest(context.Background(), []string{"X"})

	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, first.Total, second.Total)
	assert.Empty(t, second.FailedScrapers)
}

func Test_Ingest_WhenPostingResurfaces_ShouldFlagAsNewAndBackfillModule(t *testing.T) {
	store := newMemStore()
	store.seed(entities.StoredPosting{
		Link:  "https://x.example/1",
		Title: "Original title",
		IsNew: false,
	})
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Changed title")}}
	service := newService(t, store, nil, x)

	report := service.Ingest(context.Background(), []string{"X"})

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, int64(1), report.Total)

	stored := store.get("https://x.example/1")
	assert.True(t, stored.IsNew)
	assert.Equal(t, "X", stored.Module)
	assert.Equal(t, "Original title", stored.Title)
}

func Test_Ingest_WhenModuleAlreadySet_ShouldNotOverwriteIt(t *testing.T) {
	store := newMemStore()
	store.seed(entities.StoredPosting{Link: "https://shared.example/1", Title: "Engineer", Module: "A"})
	b := &fakeSource{name: "B", postings: []entities.Posting{newPosting("https://shared.example/1", "Engineer")}}
	service := newService(t, store, nil, b)

	service.Ingest(context.Background(), []string{"B"})

	assert.Equal(t, "A", store.get("https://shared.example/1").Module)
}

func Test_Ingest_WhenPostingNoLongerListed_ShouldClearNewFlag(t *testing.T) {
	store := newMemStore()
	x := &fakeSource{name: "X", postings: []entities.Posting{
		newPosting("https://x.example/1", "Engineer"),
		newPosting("https://x.example/2", "Engineer"),
	}}
	service := newService(t, store, nil, x)
	service.Ingest(context.Background(), []string{"X"})

	x.postings = x.postings[:1]
	service.Ingest(context.Background(), []string{"X"})

	assert.True(t, store.get("https://x.example/1").IsNew)
	assert.False(t, store.get("https://x.example/2").IsNew)

	x.postings = []entities.Posting{newPosting("https://x.example/2", "Engineer")}
	report := service.Ingest(context.Background(), []string{"X"})

	assert.Equal(t, 0, report.Added)
	assert.True(t, store.get("https://x.example/2").IsNew)
}

func Test_Ingest_WhenPostingHasNoLink_ShouldFailWholeSource(t *testing.T) {
	store := newMemStore()
	y := &fakeSource{name: "Y", postings: []entities.Posting{
		newPosting("https://y.example/1", "Engineer"),
		newPosting("", "Engineer"),
	}}
	service := newService(t, store, nil, y)

	report := service.Ingest(context.Background(), []string{"Y"})

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, int64(0), report.Total)
	require.Len(t, report.FailedScrapers, 1)
	assert.Equal(t, "Y", report.FailedScrapers[0].Module)
	assert.Contains(t, report.FailedScrapers[0].Error, sources.ErrMalformedPosting.Error())
	assert.Nil(t, store.get("https://y.example/1"))
}

func Test_Ingest_WhenAdvisorConfigured_ShouldAttachDiagnosis(t *testing.T) {
	fix := "use div.offer instead"
	advisor := &mockAdvisor{}
	advisor.On("Diagnose", mock.Anything, "Y", mock.MatchedBy(func(trace string) bool {
		return strings.Contains(trace, "no offers found")
	}), "fake source Y").
		Return(&entities.Diagnosis{Explanation: "selector changed", SuggestedFix: &fix}, nil).Once()

	y := &fakeSource{name: "Y", err: errors.New("no offers found")}
	service := newService(t, newMemStore(), advisor, y)

	report := service.Ingest(context.Background(), []string{"Y"})

	require.Len(t, report.FailedScrapers, 1)
	require.NotNil(t, report.FailedScrapers[0].Diagnosis)
	assert.Equal(t, "selector changed", report.FailedScrapers[0].Diagnosis.Explanation)
	assert.Equal(t, &fix, report.FailedScrapers[0].Diagnosis.SuggestedFix)
	advisor.AssertExpectations(t)
}

func Test_Ingest_WhenAdvisorFails_ShouldReportWithoutDiagnosis(t *testing.T) {
	advisor := &mockAdvisor{}
	advisor.On("Diagnose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("deadline exceeded"))

	y := &fakeSource{name: "Y", err: errors.New("timeout")}
	service := newService(t, newMemStore(), advisor, y)

	report := service.Ingest(context.Background(), []string{"Y"})

	assert.Equal(t, []entities.FailedSource{{Module: "Y", Error: "timeout"}}, report.FailedScrapers)
}

func Test_Ingest_WhenAdvisorAbsent_ShouldNotDiagnose(t *testing.T) {
	y := &fakeSource{name: "Y", err: errors.New("timeout")}
	service := newService(t, newMemStore(), NopAdvisor{}, y)

	report := service.Ingest(context.Background(), []string{"Y"})

	require.Len(t, report.FailedScrapers, 1)
	assert.Nil(t, report.FailedScrapers[0].Diagnosis)
}

func Test_Ingest_WhenNoModules_ShouldOnlyCount(t *testing.T) {
	store := newMemStore()
	store.seed(entities.StoredPosting{Link: "https://x.example/1", Title: "Engineer", Module: "X"})
	x := &fakeSource{name: "X"}
	service := newService(t, store, nil, x)

	report := service.Ingest(context.Background(), []string{})

	assert.Equal(t, entities.Report{Added: 0, Total: 1, FailedScrapers: []entities.FailedSource{}}, report)
	assert.Equal(t, 0, x.fetchCalls())
}

func Test_Ingest_WhenModuleUnknown_ShouldSkipIt(t *testing.T) {
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")}}
	service := newService(t, newMemStore(), nil, x)

	report := service.Ingest(context.Background(), []string{"missing", "X", "X"})

	assert.Equal(t, 1, report.Added)
	assert.Empty(t, report.FailedScrapers)
	assert.Equal(t, 1, x.fetchCalls())
}

func Test_Ingest_WhenStoreUnavailable_ShouldReportGeneralFailure(t *testing.T) {
	store := newMemStore()
	store.unavailable = true
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")}}
	y := &fakeSource{name: "Y", err: errors.New("timeout")}
	service := newService(t, store, nil, x, y)

	report := service.Ingest(context.Background(), []string{"X", "Y"})

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, int64(0), report.Total)
	require.Len(t, report.FailedScrapers, 2)
	assert.Equal(t, entities.FailedSource{Module: "Y", Error: "timeout"}, report.FailedScrapers[0])
	assert.Equal(t, GeneralModule, report.FailedScrapers[1].Module)
	assert.Contains(t, report.FailedScrapers[1].Error, "Database unavailable: ")
}

func Test_Ingest_WhenInsertFails_ShouldStillCountTotal(t *testing.T) {
	store := newMemStore()
	store.seed(entities.StoredPosting{Link: "https://x.example/old", Title: "Engineer", Module: "X"})
	store.failInsert = true
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")}}
	service := newService(t, store, nil, x)

	report := service.Ingest(context.Background(), []string{"X"})

	assert.Equal(t, int64(1), report.Total)
	require.Len(t, report.FailedScrapers, 1)
	assert.Equal(t, GeneralModule, report.FailedScrapers[0].Module)
	assert.Contains(t, report.FailedScrapers[0].Error, "X: ")
}

func Test_Ingest_ShouldListFailuresInDispatchOrder(t *testing.T) {
	c := &fakeSource{name: "c", err: errors.New("c failed")}
	a := &fakeSource{name: "a", err: errors.New("a failed"), delay: 30 * time.Millisecond}
	b := &fakeSource{name: "b", err: errors.New("b failed"), delay: 10 * time.Millisecond}
	service := newService(t, newMemStore(), nil, a, b, c)

	report := service.Ingest(context.Background(), []string{"a", "c", "b"})

	modules := make([]string, 0, len(report.FailedScrapers))
	for _, failure := range report.FailedScrapers {
		modules = append(modules, failure.Module)
	}
	assert.Equal(t, []string{"a", "c", "b"}, modules)
}

func Test_Ingest_ShouldStartAllSourcesTogether(t *testing.T) {
	started := make(chan string, 3)
	release := make(chan struct{})
	srcs := []sources.Source{
		&fakeSource{name: "a", started: started, release: release},
		&fakeSource{name: "b", started: started, release: release},
		&fakeSource{name: "c", started: started, release: release},
	}
	service := newService(t, newMemStore(), nil, srcs...)

	done := make(chan entities.Report)
	go func() { done <- service.Ingest(context.Background(), []string{"a", "b", "c"}) }()

	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d sources started before any finished", i)
		}
	}
	close(release)

	select {
	case report := <-done:
		assert.Empty(t, report.FailedScrapers)
	case <-time.After(2 * time.Second):
		t.Fatal("ingestion did not finish")
	}
}

func Test_Ingest_WhenSourcePanics_ShouldRecordFailure(t *testing.T) {
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")}}
	y := &fakeSource{name: "Y", panics: true}
	service := newService(t, newMemStore(), nil, x, y)

	report := service.Ingest(context.Background(), []string{"X", "Y"})

	assert.Equal(t, 1, report.Added)
	require.Len(t, report.FailedScrapers, 1)
	assert.Equal(t, "Y", report.FailedScrapers[0].Module)
	assert.Contains(t, report.FailedScrapers[0].Error, "selector returned nil")
}

func Test_Ingest_WhenSourcePanics_ShouldKeepStackOutOfReport(t *testing.T) {
	advisor := &mockAdvisor{}
	advisor.On("Diagnose", mock.Anything, "Y", mock.MatchedBy(func(trace string) bool {
		return strings.HasPrefix(trace, "panic: selector returned nil\n") && strings.Contains(trace, "IngestionService")
	}), mock.Anything).Return(nil, nil).Twice()
	y := &fakeSource{name: "Y", panics: true}
	service := newService(t, newMemStore(), advisor, y)

	first := service.Ingest(context.Background(), []string{"Y"})
	second := service.Ingest(context.Background(), []string{"Y"})

	require.Len(t, first.FailedScrapers, 1)
	assert.Equal(t, "panic: selector returned nil", first.FailedScrapers[0].Error)
	assert.Equal(t, first.FailedScrapers, second.FailedScrapers)
	advisor.AssertExpectations(t)
}

func Test_Ingest_WhenOtherSourceResurfacesPosting_ShouldKeepItNew(t *testing.T) {
	for _, slowSource := range []string{"a", "b"} {
		t.Run("slow "+slowSource, func(t *testing.T) {
			store := newMemStore()
			store.seed(entities.StoredPosting{Link: "https://shared.example/L", Title: "Engineer", Module: "a"})

			a := &fakeSource{name: "a", postings: []entities.Posting{newPosting("https://a.example/M", "Engineer")}}
			b := &fakeSource{name: "b", postings: []entities.Posting{newPosting("https://shared.example/L", "Engineer")}}
			if slowSource == "a" {
				a.delay = 50 * time.Millisecond
			} else {
				b.delay = 50 * time.Millisecond
			}
			service := newService(t, store, nil, a, b)

			report := service.Ingest(context.Background(), []string{"a", "b"})

			assert.Equal(t, 1, report.Added)
			assert.Empty(t, report.FailedScrapers)
			shared := store.get("https://shared.example/L")
			assert.True(t, shared.IsNew)
			assert.Equal(t, "a", shared.Module)
		})
	}
}

func Test_Ingest_WhenSourceFails_ShouldNotClearItsPostings(t *testing.T) {
	store := newMemStore()
	store.seed(entities.StoredPosting{Link: "https://x.example/1", Title: "Engineer", Module: "X", IsNew: true})
	x := &fakeSource{name: "X", err: errors.New("timeout")}
	service := newService(t, store, nil, x)

	service.Ingest(context.Background(), []string{"X"})

	assert.True(t, store.get("https://x.example/1").IsNew)
}

func Test_Ingest_WhenContextCancelled_ShouldStillFinishSources(t *testing.T) {
	x := &fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")},
		delay: 20 * time.Millisecond}
	service := newService(t, newMemStore(), nil, x)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := service.Ingest(ctx, []string{"X"})

	assert.Equal(t, 1, report.Added)
	assert.Empty(t, report.FailedScrapers)
}

func Test_Ingest_ShouldPublishEvents(t *testing.T) {
	bus := EventBus.New()
	var completed []events.IngestionCompleted
	var failed []events.SourceFailed
	require.NoError(t, bus.Subscribe(events.IngestionCompletedTopic, func(e events.IngestionCompleted) {
		completed = append(completed, e)
	}))
	require.NoError(t, bus.Subscribe(events.SourceFailedTopic, func(e events.SourceFailed) {
		failed = append(failed, e)
	}))

	registry, err := sources.NewRegistry(
		&fakeSource{name: "X", postings: []entities.Posting{newPosting("https://x.example/1", "Engineer")}},
		&fakeSource{name: "Y", err: errors.New("timeout")},
	)
	require.NoError(t, err)
	service := NewIngestionService(registry, newMemStore(), NewTagger(nil), nil, bus)

	report := service.IngestAll(context.Background())

	require.Len(t, completed, 1)
	assert.Equal(t, []string{"X", "Y"}, completed[0].Modules)
	assert.Equal(t, report, completed[0].Report)
	require.Len(t, failed, 1)
	assert.Equal(t, "Y", failed[0].Failure.Module)
}

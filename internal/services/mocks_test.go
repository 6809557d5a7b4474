package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/maxaizer/jobfeed/internal/repositories"
	"github.com/stretchr/testify/mock"
	"sync"
	"time"
)

type fakeSource struct {
	name     string
	postings []entities.Posting
	err      error
	delay    time.Duration
	started  chan<- string
	release  <-chan struct{}
	panics   bool
	calls    int
	mu       sync.Mutex
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Description() string { return "fake source " + s.name }

func (s *fakeSource) Fetch(ctx context.Context) ([]entities.Posting, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.started != nil {
		s.started <- s.name
	}
	if s.release != nil {
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("selector returned nil")
	}
	return s.postings, s.err
}

func (s *fakeSource) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memStore keeps postings in memory and fails every call once unavailable is set.
type memStore struct {
	mu          sync.Mutex
	byLink      map[string]*entities.StoredPosting
	nextID      uint
	unavailable bool
	failInsert  bool
}

func newMemStore() *memStore {
	return &memStore{byLink: make(map[string]*entities.StoredPosting)}
}

func (m *memStore) seed(posting entities.StoredPosting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	posting.ID = m.nextID
	m.byLink[posting.Link] = &posting
}

func (m *memStore) get(link string) *entities.StoredPosting {
	m.mu.Lock()
	defer m.mu.Unlock()
	if posting, ok := m.byLink[link]; ok {
		copied := *posting
		return &copied
	}
	return nil
}

func (m *memStore) errUnavailable(op string) error {
	return fmt.Errorf("%w: %s: database is locked", repositories.ErrStoreUnavailable, op)
}

func (m *memStore) FindByLink(_ context.Context, link string) (*entities.StoredPosting, error) {
	if m.unavailable {
		return nil, m.errUnavailable("find")
	}
	return m.get(link), nil
}

func (m *memStore) InsertBatch(_ context.Context, postings []entities.StoredPosting) (int, error) {
	if m.unavailable || m.failInsert {
		return 0, m.errUnavailable("insert")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, posting := range postings {
		if _, exists := m.byLink[posting.Link]; exists {
			continue
		}
		m.nextID++
		posting.ID = m.nextID
		stored := posting
		m.byLink[posting.Link] = &stored
		inserted++
	}
	return inserted, nil
}

func (m *memStore) MarkResurfaced(_ context.Context, ids []uint) (int, error) {
	if m.unavailable {
		return 0, m.errUnavailable("mark resurfaced")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, posting := range m.byLink {
		for _, id := range ids {
			if posting.ID == id {
				posting.IsNew = true
				updated++
			}
		}
	}
	return updated, nil
}

func (m *memStore) MarkStale(_ context.Context, module string, seenLinks []string) (int, error) {
	if m.unavailable {
		return 0, m.errUnavailable("mark stale")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(seenLinks))
	for _, link := range seenLinks {
		seen[link] = true
	}

	updated := 0
	for link, posting := range m.byLink {
		if posting.Module == module && posting.IsNew && !seen[link] {
			posting.IsNew = false
			updated++
		}
	}
	return updated, nil
}

func (m *memStore) BackfillModule(_ context.Context, id uint, module string) error {
	if m.unavailable {
		return m.errUnavailable("backfill")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, posting := range m.byLink {
		if posting.ID == id && posting.Module == "" {
			posting.Module = module
		}
	}
	return nil
}

func (m *memStore) CountAll(context.Context) (int64, error) {
	if m.unavailable {
		return 0, m.errUnavailable("count")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byLink)), nil
}

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) Diagnose(ctx context.Context, module, errorTrace, sourceText string) (*entities.Diagnosis, error) {
	args := m.Called(ctx, module, errorTrace, sourceText)
	diagnosis, _ := args.Get(0).(*entities.Diagnosis)
	return diagnosis, args.Error(1)
}

type mockAiClient struct {
	mock.Mock
}

func (m *mockAiClient) GenerateResponse(ctx context.Context, request string) (string, error) {
	args := m.Called(ctx, request)
	return args.String(0), args.Error(1)
}

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, modules []string) entities.Report {
	return m.Called(ctx, modules).Get(0).(entities.Report)
}

func (m *mockIngester) IngestAll(ctx context.Context) entities.Report {
	return m.Called(ctx).Get(0).(entities.Report)
}

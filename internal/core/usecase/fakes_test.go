package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adamantic/aussietenders/internal/core/domain"
)

type tenderRepoFake struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*domain.Tender
	saved   map[int64]domain.Enrichment
	failFor map[string]error

	lookupErr error
	saveErr   error
}

func newTenderRepoFake() *tenderRepoFake {
	return &tenderRepoFake{
		rows:    make(map[int64]*domain.Tender),
		saved:   make(map[int64]domain.Enrichment),
		failFor: make(map[string]error),
	}
}

func (f *tenderRepoFake) GetByExternalID(_ context.Context, source, externalID string) (*domain.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, row := range f.rows {
		if row.Source == source && row.ExternalID == externalID {
			copyRow := *row
			return &copyRow, nil
		}
	}
	return nil, domain.WrapError(domain.ErrTenderNotFound, "get by external id", fmt.Errorf("external_id=%s", externalID))
}

func (f *tenderRepoFake) Create(_ context.Context, c domain.TenderCandidate) (*domain.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[c.ExternalID]; err != nil {
		return nil, err
	}
	f.nextID++
	row := &domain.Tender{ID: f.nextID}
	applyCandidate(row, c)
	f.rows[row.ID] = row
	copyRow := *row
	return &copyRow, nil
}

func (f *tenderRepoFake) Update(_ context.Context, id int64, c domain.TenderCandidate) (*domain.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[c.ExternalID]; err != nil {
		return nil, err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTenderNotFound, "update", fmt.Errorf("id=%d", id))
	}
	applyCandidate(row, c)
	copyRow := *row
	return &copyRow, nil
}

func applyCandidate(row *domain.Tender, c domain.TenderCandidate) {
	row.ExternalID = c.ExternalID
	row.Source = c.Source
	row.Title = c.Title
	row.Agency = c.Agency
	row.Description = c.Description
	row.Status = c.Status
	row.Value = c.Value
	row.Location = c.Location
	row.PublishDate = c.PublishDate
	row.CloseDate = c.CloseDate
	row.Categories = append([]string(nil), c.Categories...)
}

func (f *tenderRepoFake) GetByID(_ context.Context, id int64) (*domain.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTenderNotFound, "get", fmt.Errorf("id=%d", id))
	}
	copyRow := *row
	return &copyRow, nil
}

func (f *tenderRepoFake) ListUnenriched(_ context.Context, limit int) ([]domain.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.rows))
	for id, row := range f.rows {
		if !row.AIEnriched {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Tender, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.rows[id])
	}
	return out, nil
}

func (f *tenderRepoFake) SaveEnrichment(_ context.Context, id int64, e domain.Enrichment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	row, ok := f.rows[id]
	if !ok {
		return domain.WrapError(domain.ErrTenderNotFound, "save enrichment", fmt.Errorf("id=%d", id))
	}
	at := e.EnrichedAt
	row.AISummary = e.Summary
	row.AICategories = append([]string(nil), e.Categories...)
	row.AIEnriched = true
	row.AIEnrichedAt = &at
	f.saved[id] = e
	return nil
}

func (f *tenderRepoFake) List(context.Context, domain.TenderFilter) (*domain.TenderPage, error) {
	return nil, errors.New("not implemented")
}

func (f *tenderRepoFake) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *tenderRepoFake) seed(t domain.Tender) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.rows[t.ID] = &t
	return t.ID
}

type sourceFake struct {
	name       string
	candidates []domain.TenderCandidate
	err        error
	panicMsg   string
	reachable  bool
	calls      int
}

func (f *sourceFake) Name() string { return f.name }

func (f *sourceFake) Fetch(context.Context, domain.FetchWindow) ([]domain.TenderCandidate, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *sourceFake) TestConnection(context.Context) bool {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.reachable
}

type triggerFake struct {
	mu    sync.Mutex
	calls []int
	err   error
	ctx   context.Context
}

func (f *triggerFake) TriggerEnrichment(ctx context.Context, batchSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, batchSize)
	f.ctx = ctx
	return f.err
}

type generatorFake struct {
	mu        sync.Mutex
	responses []generatorReply
	prompts   []string
	callTimes []time.Time
}

type generatorReply struct {
	text string
	err  error
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.callTimes = append(f.callTimes, time.Now())
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.text, next.err
}

func (f *generatorFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type runLockFake struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquires int
	releases int
}

func (f *runLockFake) TryAcquire(context.Context) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	f.acquires++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.held = false
		f.releases++
	}, true, nil
}

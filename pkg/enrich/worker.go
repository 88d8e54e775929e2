package enrich

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Job is one deep-link resolution request.
type Job struct {
	RequestID string
	PlaceID   string
	Name      string
	CityText  string
	Provider  string
}

// Patcher receives exactly one RESULT_PATCH per processed job.
// Implemented by the push publisher.
type Patcher interface {
	ResultPatch(requestID, placeID, provider, status string, url *string)
}

// WorkerStatus is the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a snapshot of one worker for introspection.
type WorkerHealth struct {
	Provider      string       `json:"provider"`
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	JobsProcessed int          `json:"jobsProcessed"`
	LastActivity  time.Time    `json:"lastActivity"`
}

// Options tunes the enrichment service.
type Options struct {
	WorkersPerProvider int
	QueueCapacity      int
	CacheTTL           time.Duration
	LockTTL            time.Duration
	SearchTimeout      time.Duration
}

// Service owns one bounded FIFO queue and a small worker set per
// provider. Workers outlive the requests that enqueued their jobs and
// never touch a request context.
type Service struct {
	providers map[string]Provider
	queues    map[string]chan Job
	workers   []*worker
	searcher  WebSearcher
	cache     Cache
	locker    Locker
	patcher   Patcher
	opts      Options

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService builds the enrichment service.
func NewService(providers []Provider, searcher WebSearcher, cache Cache, locker Locker, patcher Patcher, opts Options) *Service {
	if opts.WorkersPerProvider <= 0 {
		opts.WorkersPerProvider = 1
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 256
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}

	s := &Service{
		providers: make(map[string]Provider, len(providers)),
		queues:    make(map[string]chan Job, len(providers)),
		searcher:  searcher,
		cache:     cache,
		locker:    locker,
		patcher:   patcher,
		opts:      opts,
		stopCh:    make(chan struct{}),
	}
	for _, p := range providers {
		s.providers[p.Name] = p
		s.queues[p.Name] = make(chan Job, opts.QueueCapacity)
	}
	return s
}

// Providers lists the configured provider names.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// Start launches the per-provider workers.
func (s *Service) Start() {
	for name := range s.providers {
		for i := 0; i < s.opts.WorkersPerProvider; i++ {
			w := &worker{
				service:      s,
				provider:     s.providers[name],
				id:           name + "-" + strconv.Itoa(i),
				queue:        s.queues[name],
				status:       WorkerStatusIdle,
				lastActivity: time.Now(),
			}
			s.workers = append(s.workers, w)
			s.wg.Add(1)
			go w.run()
		}
	}
}

// Stop signals the workers and waits for them to drain. Safe to call
// more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Enqueue adds a job to its provider's queue. A full queue drops the
// job with a warning rather than blocking the caller: the place then
// simply stays unenriched.
func (s *Service) Enqueue(job Job) bool {
	queue, ok := s.queues[job.Provider]
	if !ok {
		slog.Warn("Enrichment job for unknown provider dropped", "provider", job.Provider)
		return false
	}
	select {
	case queue <- job:
		return true
	default:
		slog.Warn("Enrichment queue full, dropping job",
			"provider", job.Provider, "place_id", job.PlaceID)
		return false
	}
}

// Health snapshots all workers.
func (s *Service) Health() []WorkerHealth {
	out := make([]WorkerHealth, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.health())
	}
	return out
}

// worker consumes one provider queue.
type worker struct {
	service  *Service
	provider Provider
	id       string
	queue    chan Job

	mu            sync.RWMutex
	status        WorkerStatus
	jobsProcessed int
	lastActivity  time.Time
}

func (w *worker) run() {
	defer w.service.wg.Done()

	log := slog.With("worker_id", w.id, "provider", w.provider.Name)
	log.Info("Enrichment worker started")

	for {
		select {
		case <-w.service.stopCh:
			log.Info("Enrichment worker shutting down")
			return
		case job := <-w.queue:
			w.setStatus(WorkerStatusWorking)
			w.process(job)
			w.setStatus(WorkerStatusIdle)
		}
	}
}

// process resolves one job. Exactly one RESULT_PATCH leaves on every
// exit path: a place is never left PENDING from the client's view.
func (w *worker) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.service.opts.SearchTimeout)
	defer cancel()

	patched := false
	patch := func(status string, url *string) {
		if patched {
			return
		}
		patched = true
		w.service.patcher.ResultPatch(job.RequestID, job.PlaceID, w.provider.Name, status, url)
	}
	// Whatever happens below, the client gets a terminal answer.
	defer patch(StatusNotFound, nil)

	if !w.service.locker.TryAcquire(ctx, w.provider.Name, job.PlaceID, w.service.opts.LockTTL) {
		// Another worker is resolving this key; its patch will land.
		// Serve whatever the cache has rather than staying silent.
		if entry, ok := w.service.cache.Get(ctx, w.provider.Name, job.PlaceID); ok {
			patch(entry.Status, entry.URL)
		}
		return
	}
	defer w.service.locker.Release(ctx, w.provider.Name, job.PlaceID)

	if entry, ok := w.service.cache.Get(ctx, w.provider.Name, job.PlaceID); ok {
		patch(entry.Status, entry.URL)
		return
	}

	entry := w.resolve(ctx, job)
	w.service.cache.Set(ctx, w.provider.Name, job.PlaceID, entry, w.service.opts.CacheTTL)
	patch(entry.Status, entry.URL)
}

// resolve walks the progressive query plan and returns the first valid
// deep link, or NOT_FOUND with a null URL. A synthesized search URL is
// never fabricated.
func (w *worker) resolve(ctx context.Context, job Job) Entry {
	for _, query := range w.provider.queryPlan(job.Name, job.CityText) {
		hits, err := w.service.searcher.SearchWeb(ctx, query, 5)
		if err != nil {
			slog.Warn("Web search failed",
				"provider", w.provider.Name, "place_id", job.PlaceID, "error", err)
			continue
		}
		for _, hit := range hits {
			if w.provider.ValidDeepLink(hit.URL) {
				url := hit.URL
				return Entry{Status: StatusFound, URL: &url}
			}
		}
	}
	return Entry{Status: StatusNotFound, URL: nil}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusIdle {
		w.jobsProcessed++
	}
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

func (w *worker) health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		Provider:      w.provider.Name,
		ID:            w.id,
		Status:        w.status,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

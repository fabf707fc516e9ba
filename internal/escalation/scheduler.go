package escalation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/civictech/grievance-core/internal/repository"
)

// DefaultInterval is the default sweep cadence.
const DefaultInterval = 6 * time.Hour

// Scheduler periodically sweeps the active complaint set through the
// escalation service. TriggerNow runs the same sweep on demand for
// administrative use.
type Scheduler struct {
	service  *Service
	repo     *repository.ComplaintRepository
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func NewScheduler(service *Service, repo *repository.ComplaintRepository, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{service: service, repo: repo, interval: interval}
}

// Start launches the background ticker loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Println("[ESCALATION] scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	log.Printf("[ESCALATION] scheduler started (interval: %v)", s.interval)
	go s.run(s.stop)
}

// Stop halts the ticker loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
	log.Println("[ESCALATION] scheduler stopped")
}

func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	start := time.Now()
	n, err := s.TriggerNow(ctx)
	if err != nil {
		log.Printf("[ESCALATION] batch run failed: %v", err)
		return
	}
	log.Printf("[ESCALATION] batch run completed in %v: %d escalations", time.Since(start), n)
}

// TriggerNow fetches every active complaint and hands it to ProcessBatch,
// returning the count of escalations actually performed. Overlapping
// calls are safe because Service.Process is idempotent per level.
func (s *Scheduler) TriggerNow(ctx context.Context) (int, error) {
	complaints, err := s.repo.FindActiveWithDeadline(ctx)
	if err != nil {
		return 0, err
	}
	return s.service.ProcessBatch(ctx, complaints, time.Now()), nil
}

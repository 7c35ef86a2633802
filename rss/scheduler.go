package rss

import (
	"context"
	"log"
	"sync"
	"time"
)

// TickFunc runs one poll of a feed source.
type TickFunc func(ctx context.Context, sourceID string)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the live polling tasks, one recurring timer per feed
// source. Registry mutations are serialized behind one mutex because HTTP
// lifecycle calls race with tick callbacks and startup rehydration.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task
	tick  TickFunc
}

func NewScheduler(tick TickFunc) *Scheduler {
	return &Scheduler{tasks: make(map[string]*task), tick: tick}
}

// Register starts a recurring task keyed by the source ID. Registering an
// existing key is a no-op, so restart races never double-tick a source.
func (s *Scheduler) Register(sourceID string, interval time.Duration) {
	// time.NewTicker panics on non-positive intervals; source handlers
	// already reject anything under one second
	if interval <= 0 {
		interval = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[sourceID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[sourceID] = t
	go s.run(ctx, sourceID, interval, t)

	log.Printf("rss task %s registered, interval %s", sourceID, interval)
}

func (s *Scheduler) run(ctx context.Context, sourceID string, interval time.Duration, t *task) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, sourceID)
		}
	}
}

// Deregister cancels the source's task and waits for its goroutine to exit.
// No further tick fires after Deregister returns.
func (s *Scheduler) Deregister(sourceID string) {
	s.mu.Lock()
	t, ok := s.tasks[sourceID]
	if ok {
		delete(s.tasks, sourceID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	<-t.done
	log.Printf("rss task %s deregistered", sourceID)
}

// Active reports whether a task is registered for the source.
func (s *Scheduler) Active(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[sourceID]
	return ok
}

// Count returns the number of live tasks.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Rehydrate registers a task for every source that is not stopped. Run at
// process start to resume persisted schedules.
func (s *Scheduler) Rehydrate(ctx context.Context, sources SourceStore) error {
	active, err := sources.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, src := range active {
		s.Register(src.ID, time.Duration(src.Interval)*time.Second)
	}
	log.Printf("rss scheduler rehydrated, %d task(s)", len(active))
	return nil
}

// Shutdown cancels every task and waits for them to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

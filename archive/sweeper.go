package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper collects zero-ref resources on a low-priority background loop so
// user-facing deletes never pay for blob removal.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger
	done     chan struct{}
	stop     chan struct{}
	once     sync.Once
}

// NewSweeper starts the sweep loop. interval <= 0 defaults to one minute.
func NewSweeper(store *Store, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Close stops the loop after one final sweep.
func (s *Sweeper) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			s.sweep()
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.SweepResources(ctx)
	if err != nil {
		s.log.Error("resource sweep", "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("resource sweep", "collected", n)
	}
}

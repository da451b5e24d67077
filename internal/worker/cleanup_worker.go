package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/store"
)

// SessionCleanup periodically evicts sessions that outlived their maximum
// lifetime. The redis store handles expiry via TTL and reports zero here.
type SessionCleanup struct {
	store    store.CredentialStore
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
}

// StartSessionCleanup launches the cleanup loop and returns its handle.
func StartSessionCleanup(credStore store.CredentialStore, interval time.Duration, logger *zap.Logger) *SessionCleanup {
	w := &SessionCleanup{
		store:    credStore,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// Stop terminates the cleanup loop.
func (w *SessionCleanup) Stop() {
	close(w.stop)
}

func (w *SessionCleanup) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if count := w.store.EvictExpired(context.Background(), time.Now()); count > 0 {
				w.logger.Info("evicted expired sessions", zap.Int("count", count))
			}
		case <-w.stop:
			return
		}
	}
}

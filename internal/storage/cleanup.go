package storage

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// Sweeper barre grants vencidos en un loop periódico, desacoplado del request
// handling. Los deletes son idempotentes: corridas superpuestas (dos réplicas
// apuntando al mismo store) no se pisan.
type Sweeper struct {
	store    GrantStore
	interval time.Duration
}

func NewSweeper(store GrantStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: store, interval: interval}
}

// Run bloquea hasta que ctx se cancele. Llamar en su propia goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	log := logger.Named("grant-sweeper")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			n, err := s.store.RemoveExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("expired grant sweep failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired grants removed", logger.Count(n), logger.Duration(time.Since(start)))
			}
		}
	}
}

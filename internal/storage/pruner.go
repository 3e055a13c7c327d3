package storage

import (
	"context"
	"log/slog"
	"time"
)

// Pruner removes conversation history older than the configured retention
// window. It polls on an interval until its context is cancelled.
type Pruner struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewPruner creates a Pruner. retention <= 0 disables pruning entirely;
// interval <= 0 defaults to one hour.
func NewPruner(store *Store, retention, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    slog.Default(),
	}
}

// Run prunes on the configured interval until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	for {
		if err := p.RunOnce(); err != nil {
			p.logger.Error("history pruning failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// RunOnce performs a single pruning pass.
func (p *Pruner) RunOnce() error {
	cutoff := time.Now().Add(-p.retention)
	removed, err := p.store.PruneOlderThan(cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		p.logger.Info("pruned old messages", "removed", removed, "cutoff", cutoff.UTC())
	}
	return nil
}

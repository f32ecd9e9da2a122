package approval

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiringRepository marks stale pending requests expired.
type ExpiringRepository interface {
	ExpireOlderThan(cutoff time.Time) (int64, error)
}

// Expirer sweeps pending approval requests past their TTL. The owning
// invoice stays in PENDING_APPROVAL so it remains visible in the admin
// listing; a fresh request needs a new analysis pass.
type Expirer struct {
	repo   ExpiringRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewExpirer creates an approval request expirer.
func NewExpirer(repo ExpiringRepository, ttl time.Duration, logger *zap.Logger) *Expirer {
	return &Expirer{repo: repo, ttl: ttl, logger: logger}
}

// Run expires every pending request older than the TTL.
func (e *Expirer) Run(_ context.Context) error {
	cutoff := time.Now().UTC().Add(-e.ttl)
	expired, err := e.repo.ExpireOlderThan(cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		e.logger.Info("Expired stale approval requests", zap.Int64("count", expired))
	}
	return nil
}

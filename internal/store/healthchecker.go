package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsage/medsage-server/internal/health"
	"github.com/medsage/medsage-server/internal/model"
)

// NewStoreHealthChecker builds a checker that verifies store connectivity.
func NewStoreHealthChecker(st Store, log zerolog.Logger, probeTimeout time.Duration) *health.ProbeChecker {
	probe := func(ctx context.Context) error {
		// Prefer a specialized ping when the store provides one.
		if p, ok := st.(health.HealthPinger); ok {
			return p.HealthPing(ctx)
		}
		// Fallback: a cheap read. ErrNotFound means the store responded.
		_, err := st.Users().GetByID(ctx, "__health_check__")
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
		return nil
	}
	return health.NewProbeChecker("store", probe, log, probeTimeout)
}

package medbot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsage/medsage-server/internal/health"
)

// NewBotHealthChecker builds a checker that probes the external
// consultation service's health endpoint.
func NewBotHealthChecker(c Client, log zerolog.Logger, probeTimeout time.Duration) *health.ProbeChecker {
	probe := func(ctx context.Context) error {
		report, err := c.Health(ctx)
		if err != nil {
			return err
		}
		if !report.Healthy {
			return fmt.Errorf("consultation service reported unhealthy")
		}
		return nil
	}
	return health.NewProbeChecker("medbot", probe, log, probeTimeout)
}

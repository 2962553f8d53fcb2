package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	name    string
	healthy atomic.Int32
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() == 1 }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) { /* no-op */ }

func TestServiceHealthChecker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeChecker{name: "store"}
	bot := &fakeChecker{name: "medbot"}
	store.healthy.Store(1)
	bot.healthy.Store(1)

	svc := NewServiceHealthChecker(zerolog.Nop(), store, bot)
	go svc.Start(ctx, 10*time.Millisecond)

	// Initially healthy
	waitTrue(t, func() bool { return svc.IsHealthy() })

	// The consultation service going down takes the aggregate down
	bot.healthy.Store(0)
	waitTrue(t, func() bool { return !svc.IsHealthy() })

	// Recover
	bot.healthy.Store(1)
	waitTrue(t, func() bool { return svc.IsHealthy() })
}

func TestProbeChecker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fail atomic.Bool
	pc := NewProbeChecker("probe", func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("probe failed")
		}
		return nil
	}, zerolog.Nop(), time.Second)

	// Unhealthy until the first successful probe.
	if pc.IsHealthy() {
		t.Fatal("checker must start unhealthy")
	}
	go pc.Start(ctx, 10*time.Millisecond)
	waitTrue(t, func() bool { return pc.IsHealthy() })

	fail.Store(true)
	waitTrue(t, func() bool { return !pc.IsHealthy() })
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

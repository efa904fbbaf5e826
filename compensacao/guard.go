package compensacao

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/sirupsen/logrus"
)

const remediationLockKey = "compensacao:remediation:inflight"

type GuardState string

const (
	GuardIdle         GuardState = "idle"
	GuardReprocessing GuardState = "reprocessing"
	GuardOverriding   GuardState = "overriding"
)

type GuardStatus struct {
	State    GuardState `json:"state"`
	RecordID string     `json:"recordId,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
}

type heldLock interface {
	Release(ctx context.Context) error
}

type obtainFunc func(ctx context.Context, key string, ttl time.Duration) (heldLock, error)

// InFlightGuard admits one remediation command at a time, across all
// records. With a Redis locker it also serializes between replicas.
type InFlightGuard struct {
	mu      sync.Mutex
	status  GuardStatus
	obtain  obtainFunc
	lockTTL time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

func NewInFlightGuard(locker *redislock.Client, lockTTL time.Duration) *InFlightGuard {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	g := &InFlightGuard{
		status:  GuardStatus{State: GuardIdle},
		lockTTL: lockTTL,
		logger:  config.GetLogger(),
		now:     time.Now,
	}
	if locker != nil {
		g.obtain = func(ctx context.Context, key string, ttl time.Duration) (heldLock, error) {
			return locker.Obtain(ctx, key, ttl, nil)
		}
	}
	return g
}

// Begin moves the guard out of idle. The returned release must be called
// exactly once; calling it again is a no-op.
func (g *InFlightGuard) Begin(ctx context.Context, state GuardState, recordID string) (func(), error) {
	g.mu.Lock()
	if g.status.State != GuardIdle {
		current := g.status
		g.mu.Unlock()
		return nil, &RemediationError{
			Kind:    KindInFlight,
			Message: fmt.Sprintf("remediation already in progress (%s %s)", current.State, current.RecordID),
			Err:     ErrInFlight,
		}
	}
	since := g.now()
	g.status = GuardStatus{State: state, RecordID: recordID, Since: &since}
	g.mu.Unlock()

	var lock heldLock
	if g.obtain != nil {
		var err error
		lock, err = g.obtain(ctx, remediationLockKey, g.lockTTL)
		if err != nil {
			g.reset()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, &RemediationError{
					Kind:    KindInFlight,
					Message: "remediation already in progress on another instance",
					Err:     ErrInFlight,
				}
			}
			return nil, transportError(fmt.Errorf("obtain remediation lock: %w", err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if lock != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := lock.Release(ctx); err != nil {
					config.LogError(g.logger, "compensacao", "InFlightGuard.release", remediationLockKey, recordID, err)
				}
				cancel()
			}
			g.reset()
		})
	}, nil
}

func (g *InFlightGuard) reset() {
	g.mu.Lock()
	g.status = GuardStatus{State: GuardIdle}
	g.mu.Unlock()
}

func (g *InFlightGuard) Status() GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *InFlightGuard) Busy() bool {
	return g.Status().State != GuardIdle
}

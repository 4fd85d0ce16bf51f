// Package seeder seeds default configuration resources, device groups,
// alert rules and a default simulation, into the remote services on the
// first start of the deployment.
//
// Many instances may start at once, coordination uses a distributed mutex
// and a persisted completion flag, so the seed runs to completion exactly once.
// All other instances skip on lock contention or on the present flag.
package seeder

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/bootflag"
	"github.com/iotline/monitoring-config/internal/pkg/service/common/distlock"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/config"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/template"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

const (
	// MutexName is the lock shared by all instances racing to seed.
	MutexName = "seed"
	// CompletionFlagKey gates all future seed attempts once set.
	CompletionFlagKey = "seed/completed"
)

// Mutex is a distributed lock with a bounded lease, see the distlock package.
type Mutex interface {
	Name() string
	TryLock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// FlagStore persists the one-time-completion marker, see the bootflag package.
type FlagStore interface {
	Get(ctx context.Context, key string) (marker bootflag.Marker, found bool, err error)
	PutIfNotExists(ctx context.Context, key string, marker bootflag.Marker) (ok bool, err error)
}

// GroupStore is the remote collection of device groups.
type GroupStore interface {
	UpsertGroup(ctx context.Context, group template.Group) error
}

// RuleStore is the remote collection of alert rules.
type RuleStore interface {
	UpsertRule(ctx context.Context, rule template.Rule) error
}

// SimulationStore is the remote collection of simulations.
type SimulationStore interface {
	DefaultSimulation(ctx context.Context) (sim template.Simulation, found bool, err error)
	CreateSimulation(ctx context.Context, sim template.Simulation) error
}

// TemplateLoader loads and parses a named template, see the template package.
type TemplateLoader interface {
	Load(name string) (*template.Template, error)
}

type Seeder struct {
	config config.Config
	deps   Dependencies
	logger log.Logger
}

type Dependencies struct {
	Logger      log.Logger
	Clock       clockwork.Clock
	Mutex       Mutex
	Flags       FlagStore
	Groups      GroupStore
	Rules       RuleStore
	Simulations SimulationStore
	Templates   TemplateLoader
}

func New(cfg config.Config, d Dependencies) *Seeder {
	return &Seeder{config: cfg, deps: d, logger: d.Logger.WithComponent("seeder")}
}

// TrySeed runs the seed at most once across all instances.
//
// Lock contention, a present completion flag and a missing template
// configuration are normal skips, not errors. Any failure of the seed
// sequence is returned and the mutex is intentionally NOT released,
// the lease expiry serializes the next attempt, see the distlock package.
func (s *Seeder) TrySeed(ctx context.Context) error {
	// Seeding is opt-in
	if s.config.TemplateName == "" {
		s.logger.Info(ctx, "skipped seeding, no template is configured")
		return nil
	}

	// At most one instance gets the lock, contention and an unreachable
	// lock backend are both expected outcomes of the race, not failures.
	if err := s.deps.Mutex.TryLock(ctx); err != nil {
		lockedErr := distlock.AlreadyLockedError{}
		if errors.As(err, &lockedErr) {
			s.logger.Infof(ctx, `skipped seeding, another instance is seeding: %s`, err)
		} else {
			s.logger.Infof(ctx, `skipped seeding, cannot acquire lock: %s`, err)
		}
		return nil
	}

	// Already done by this or another instance?
	marker, found, err := s.deps.Flags.Get(ctx, CompletionFlagKey)
	if err != nil {
		return errors.PrefixError(err, "cannot check seed completion flag")
	}
	if found {
		s.logger.Infof(ctx, `skipped seeding, already completed at %s by "%s"`, marker.SeededAt.Format(time.RFC3339), marker.By)
		// The lock was not needed, release it for the waiters
		if err := s.deps.Mutex.Unlock(ctx); err != nil {
			s.logger.Warnf(ctx, `cannot release seed lock: %s`, err)
		}
		return nil
	}

	s.logger.Infof(ctx, `seeding from template "%s"`, s.config.TemplateName)
	if err := s.seed(ctx); err != nil {
		return err
	}

	// The flag must be written before the lock is released,
	// a waiter must never observe a released lock and a missing flag.
	// The write is conditional, the marker is never overwritten.
	ok, err := s.deps.Flags.PutIfNotExists(ctx, CompletionFlagKey, bootflag.Marker{
		Done:     true,
		SeededAt: s.deps.Clock.Now().UTC(),
		By:       s.config.InstanceID,
	})
	if err != nil {
		return errors.PrefixError(err, "cannot write seed completion flag")
	}
	if !ok {
		s.logger.Warn(ctx, "seed completion flag already set")
	}

	if err := s.deps.Mutex.Unlock(ctx); err != nil {
		s.logger.Warnf(ctx, `cannot release seed lock: %s`, err)
	}

	s.logger.Info(ctx, "seeding completed")
	return nil
}

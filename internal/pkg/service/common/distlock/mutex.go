package distlock

import (
	"context"
	"fmt"

	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// Mutex is a distributed lock, at most one process holds it at a time.
type Mutex struct {
	logger log.Logger
	name   string
	mtx    *concurrency.Mutex
}

// AlreadyLockedError is returned by TryLock when the lock is held by another process.
type AlreadyLockedError struct {
	Name string
}

func (e AlreadyLockedError) Error() string {
	return fmt.Sprintf(`already locked "%s"`, e.Name)
}

func (m *Mutex) Name() string {
	return m.name
}

// TryLock acquires the lock or fails immediately with AlreadyLockedError if it is contended.
func (m *Mutex) TryLock(ctx context.Context) error {
	if err := m.mtx.TryLock(ctx); errors.Is(err, concurrency.ErrLocked) {
		return AlreadyLockedError{Name: m.name}
	} else if err != nil {
		return errors.Errorf(`cannot lock "%s": %w`, m.name, err)
	}
	m.logger.Debugf(ctx, `locked "%s"`, m.name)
	return nil
}

// Unlock releases the lock held by this process.
func (m *Mutex) Unlock(ctx context.Context) error {
	if err := m.mtx.Unlock(ctx); err != nil {
		return errors.Errorf(`cannot unlock "%s": %w`, m.name, err)
	}
	m.logger.Debugf(ctx, `unlocked "%s"`, m.name)
	return nil
}

// Package bootflag persists one-time-completion markers in etcd.
//
// A marker is written once, after a bootstrap operation has fully succeeded,
// and gates all future runs of the same operation.
package bootflag

import (
	"context"
	"time"

	etcd "go.etcd.io/etcd/client/v3"

	"github.com/iotline/monitoring-config/internal/pkg/encoding/json"
	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

const DefaultPrefix = "runtime/bootflag/"

// Marker records that a one-time operation has completed, and by whom.
type Marker struct {
	Done     bool      `json:"done"`
	SeededAt time.Time `json:"seededAt"`
	By       string    `json:"by"`
}

type Store struct {
	logger log.Logger
	client *etcd.Client
	prefix string
}

func NewStore(logger log.Logger, client *etcd.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{logger: logger.WithComponent("bootflag"), client: client, prefix: prefix}
}

// Get returns the marker stored under the key, found=false signals a missing marker.
func (s *Store) Get(ctx context.Context, key string) (marker Marker, found bool, err error) {
	resp, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		return Marker{}, false, errors.Errorf(`cannot get flag "%s": %w`, key, err)
	}
	if resp.Count == 0 {
		return Marker{}, false, nil
	}
	if err := json.Decode(resp.Kvs[0].Value, &marker); err != nil {
		return Marker{}, false, errors.PrefixErrorf(err, `invalid value of flag "%s"`, key)
	}
	return marker, true, nil
}

// PutIfNotExists writes the marker only if the key is empty, ok=false signals an existing marker.
// A written marker is never overwritten.
func (s *Store) PutIfNotExists(ctx context.Context, key string, marker Marker) (ok bool, err error) {
	encoded, err := json.EncodeString(marker, false)
	if err != nil {
		return false, errors.PrefixErrorf(err, `cannot encode flag "%s"`, key)
	}
	resp, err := s.client.Txn(ctx).
		If(etcd.Compare(etcd.Version(s.prefix+key), "=", 0)).
		Then(etcd.OpPut(s.prefix+key, encoded)).
		Commit()
	if err != nil {
		return false, errors.Errorf(`cannot put flag "%s": %w`, key, err)
	}
	if resp.Succeeded {
		s.logger.Debugf(ctx, `flag "%s" set`, key)
	}
	return resp.Succeeded, nil
}

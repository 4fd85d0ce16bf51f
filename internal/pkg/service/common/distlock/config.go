package distlock

import (
	"time"
)

const (
	// DefaultTTL is the lease length, a lock held by a crashed process is reclaimable after it expires.
	DefaultTTL = 5 * time.Minute
	// DefaultPrefix prefixes all lock keys in etcd.
	DefaultPrefix = "runtime/lock/"
)

type Config struct {
	TTL    time.Duration `configKey:"ttl" configUsage:"Lease length, a lock of a crashed process expires after it."`
	Prefix string        `configKey:"prefix" configUsage:"Prefix of all lock keys in etcd."`
}

func NewConfig() Config {
	return Config{
		TTL:    DefaultTTL,
		Prefix: DefaultPrefix,
	}
}

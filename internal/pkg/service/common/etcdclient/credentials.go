package etcdclient

import (
	"strings"

	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

type Credentials struct {
	Endpoint  string `configKey:"endpoint" configUsage:"etcd endpoint."`
	Namespace string `configKey:"namespace" configUsage:"etcd namespace."`
	Username  string `configKey:"username" configUsage:"etcd username."`
	Password  string `configKey:"password" configUsage:"etcd password." sensitive:"true"`
}

func (c *Credentials) Normalize() {
	c.Endpoint = strings.Trim(c.Endpoint, " /")
	c.Namespace = strings.Trim(c.Namespace, " /") + "/"
}

func (c *Credentials) Validate() error {
	if c.Endpoint == "" {
		return errors.New("etcd endpoint is not set")
	}
	if c.Namespace == "/" {
		return errors.New("etcd namespace is not set")
	}
	return nil
}

// Package telemetryapi is a client for the telemetry service,
// the remote store of device groups and alert rules.
package telemetryapi

import (
	"context"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/iotline/monitoring-config/internal/pkg/api/client"
	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/template"
)

// AnyVersion disables the optimistic concurrency check on writes,
// the previous version, if any, is overwritten.
const AnyVersion = "*"

type API struct {
	client *resty.Client
}

func New(logger log.Logger, baseURL string) *API {
	return &API{client: client.New(logger.WithComponent("telemetry-api"), baseURL)}
}

// UpsertGroup creates or overwrites the device group, any previous version is accepted.
func (a *API) UpsertGroup(ctx context.Context, group template.Group) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("If-Match", AnyVersion).
		SetBody(group).
		Put("/devicegroups/" + url.PathEscape(group.ID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return client.ResponseError(res)
	}
	return nil
}

// UpsertRule creates or overwrites the alert rule, any previous version is accepted.
func (a *API) UpsertRule(ctx context.Context, rule template.Rule) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("If-Match", AnyVersion).
		SetBody(rule).
		Put("/rules/" + url.PathEscape(rule.ID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return client.ResponseError(res)
	}
	return nil
}

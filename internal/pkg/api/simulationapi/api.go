// Package simulationapi is a client for the device simulation service.
package simulationapi

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/iotline/monitoring-config/internal/pkg/api/client"
	"github.com/iotline/monitoring-config/internal/pkg/log"
	"github.com/iotline/monitoring-config/internal/pkg/service/seeder/template"
)

// DefaultSimulationID identifies the simulation created by the bootstrap seed.
const DefaultSimulationID = "default"

type API struct {
	client *resty.Client
}

func New(logger log.Logger, baseURL string) *API {
	return &API{client: client.New(logger.WithComponent("simulation-api"), baseURL)}
}

// DefaultSimulation returns the default simulation, found=false when none exists yet.
func (a *API) DefaultSimulation(ctx context.Context) (sim template.Simulation, found bool, err error) {
	res, err := a.client.R().
		SetContext(ctx).
		Get("/simulations/" + DefaultSimulationID)
	if err != nil {
		return nil, false, err
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if res.IsError() {
		return nil, false, client.ResponseError(res)
	}
	return template.Simulation(res.Body()), true, nil
}

// CreateSimulation creates one simulation from the template payload.
func (a *API) CreateSimulation(ctx context.Context, sim template.Simulation) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(sim)).
		Post("/simulations")
	if err != nil {
		return err
	}
	if res.IsError() {
		return client.ResponseError(res)
	}
	return nil
}

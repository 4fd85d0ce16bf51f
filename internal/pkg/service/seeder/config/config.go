// Package config defines configuration of the bootstrap seeder.
package config

import (
	"time"

	"github.com/iotline/monitoring-config/internal/pkg/service/common/etcdclient"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
	"github.com/iotline/monitoring-config/internal/pkg/validator"

	"github.com/iotline/monitoring-config/internal/pkg/encoding/json"
)

// Mode distinguishes the two deployment flavors sharing the same template.
type Mode string

const (
	// ModeGeneric seeds device groups, alert rules and the default simulation.
	ModeGeneric = Mode("generic")
	// ModeDeviceSimulation seeds only the default simulation, groups and rules are not applicable.
	ModeDeviceSimulation = Mode("device-simulation")

	DefaultMutexTTL = 5 * time.Minute
)

type Config struct {
	DebugLog         bool                   `configKey:"debugLog" configUsage:"Enable debug log level."`
	InstanceID       string                 `configKey:"instanceId" configUsage:"Identifier of this instance, defaults to the hostname."`
	Mode             Mode                   `configKey:"mode" configUsage:"Deployment mode: generic or device-simulation." validate:"required,oneof=generic device-simulation"`
	TemplateName     string                 `configKey:"templateName" configUsage:"Name of the seed template, empty disables seeding."`
	TemplateDir      string                 `configKey:"templateDir" configUsage:"Directory with template files, empty means the data directory next to the executable."`
	MutexTTL         time.Duration          `configKey:"mutexTtl" configUsage:"Lease of the seed mutex, a lock of a crashed instance expires after it." validate:"required"`
	Etcd             etcdclient.Credentials `configKey:"etcd"`
	TelemetryAPIURL  string                 `configKey:"telemetryApiUrl" configUsage:"URL of the telemetry service." validate:"required,url"`
	SimulationAPIURL string                 `configKey:"simulationApiUrl" configUsage:"URL of the device simulation service." validate:"required,url"`
}

func New() Config {
	return Config{
		DebugLog:     false,
		Mode:         ModeGeneric,
		TemplateName: "",
		TemplateDir:  "",
		MutexTTL:     DefaultMutexTTL,
	}
}

// IsDeviceSimulation returns true when groups and rules are not applicable.
func (m Mode) IsDeviceSimulation() bool {
	return m == ModeDeviceSimulation
}

func (c *Config) Normalize() {
	c.Etcd.Normalize()
}

func (c *Config) Validate() error {
	errs := errors.NewMultiError()
	if err := validator.Validate(*c); err != nil {
		errs.Append(err)
	}
	if err := c.Etcd.Validate(); err != nil {
		errs.Append(err)
	}
	return errs.ErrorOrNil()
}

// Dump returns the configuration as a one-line JSON string, secrets are masked.
func (c Config) Dump() string {
	clone := c
	if clone.Etcd.Password != "" {
		clone.Etcd.Password = "*****"
	}
	return json.MustEncodeString(dump{
		DebugLog:         clone.DebugLog,
		InstanceID:       clone.InstanceID,
		Mode:             string(clone.Mode),
		TemplateName:     clone.TemplateName,
		TemplateDir:      clone.TemplateDir,
		MutexTTL:         clone.MutexTTL.String(),
		EtcdEndpoint:     clone.Etcd.Endpoint,
		EtcdNamespace:    clone.Etcd.Namespace,
		EtcdUsername:     clone.Etcd.Username,
		EtcdPassword:     clone.Etcd.Password,
		TelemetryAPIURL:  clone.TelemetryAPIURL,
		SimulationAPIURL: clone.SimulationAPIURL,
	}, false)
}

type dump struct {
	DebugLog         bool   `json:"debugLog"`
	InstanceID       string `json:"instanceId"`
	Mode             string `json:"mode"`
	TemplateName     string `json:"templateName"`
	TemplateDir      string `json:"templateDir"`
	MutexTTL         string `json:"mutexTtl"`
	EtcdEndpoint     string `json:"etcdEndpoint"`
	EtcdNamespace    string `json:"etcdNamespace"`
	EtcdUsername     string `json:"etcdUsername,omitempty"`
	EtcdPassword     string `json:"etcdPassword,omitempty"`
	TelemetryAPIURL  string `json:"telemetryApiUrl"`
	SimulationAPIURL string `json:"simulationApiUrl"`
}

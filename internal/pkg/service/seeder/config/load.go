package config

import (
	"os"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"

	"github.com/iotline/monitoring-config/internal/pkg/env"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// ENVPrefix prefixes all environment variables, e.g. CONFIG_SERVICE_TEMPLATE_NAME.
const ENVPrefix = "CONFIG_SERVICE_"

// LoadFrom loads the configuration from command line flags and environment variables.
// A flag set on the command line wins over the environment.
// The pflag.ErrHelp error is returned on the --help flag.
func LoadFrom(args []string, envs *env.Map) (Config, error) {
	cfg := New()

	fs := pflag.NewFlagSet("config-service", pflag.ContinueOnError)
	fs.BoolVar(&cfg.DebugLog, "debug-log", cfg.DebugLog, "Enable debug log level.")
	fs.StringVar(&cfg.InstanceID, "instance-id", cfg.InstanceID, "Identifier of this instance, defaults to the hostname.")
	mode := fs.String("mode", string(cfg.Mode), "Deployment mode: generic or device-simulation.")
	fs.StringVar(&cfg.TemplateName, "template-name", cfg.TemplateName, "Name of the seed template, empty disables seeding.")
	fs.StringVar(&cfg.TemplateDir, "template-dir", cfg.TemplateDir, "Directory with template files.")
	fs.DurationVar(&cfg.MutexTTL, "mutex-ttl", cfg.MutexTTL, "Lease of the seed mutex.")
	fs.StringVar(&cfg.Etcd.Endpoint, "etcd-endpoint", cfg.Etcd.Endpoint, "etcd endpoint.")
	fs.StringVar(&cfg.Etcd.Namespace, "etcd-namespace", cfg.Etcd.Namespace, "etcd namespace.")
	fs.StringVar(&cfg.Etcd.Username, "etcd-username", cfg.Etcd.Username, "etcd username.")
	fs.StringVar(&cfg.Etcd.Password, "etcd-password", cfg.Etcd.Password, "etcd password.")
	fs.StringVar(&cfg.TelemetryAPIURL, "telemetry-api-url", cfg.TelemetryAPIURL, "URL of the telemetry service.")
	fs.StringVar(&cfg.SimulationAPIURL, "simulation-api-url", cfg.SimulationAPIURL, "URL of the device simulation service.")
	if err := fs.Parse(args[1:]); err != nil {
		return cfg, err
	}
	cfg.Mode = Mode(*mode)

	// Fill values not set by a flag from the environment
	if err := applyENVs(fs, envs, &cfg); err != nil {
		return cfg, err
	}

	// Default instance id
	if cfg.InstanceID == "" {
		if hostname, err := os.Hostname(); err == nil {
			cfg.InstanceID = hostname
		} else {
			cfg.InstanceID = "unknown"
		}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.PrefixError(err, "invalid configuration")
	}
	return cfg, nil
}

func applyENVs(fs *pflag.FlagSet, envs *env.Map, cfg *Config) error {
	errs := errors.NewMultiError()
	apply := func(flagName, envSuffix string, set func(value string) error) {
		if fs.Changed(flagName) {
			return
		}
		if value, found := envs.Lookup(ENVPrefix + envSuffix); found {
			if err := set(value); err != nil {
				errs.AppendWithPrefixf(err, `invalid value of %s%s`, ENVPrefix, envSuffix)
			}
		}
	}

	apply("debug-log", "DEBUG_LOG", func(v string) error {
		parsed, err := cast.ToBoolE(v)
		cfg.DebugLog = parsed
		return err
	})
	apply("instance-id", "INSTANCE_ID", func(v string) error {
		cfg.InstanceID = v
		return nil
	})
	apply("mode", "MODE", func(v string) error {
		cfg.Mode = Mode(v)
		return nil
	})
	apply("template-name", "TEMPLATE_NAME", func(v string) error {
		cfg.TemplateName = v
		return nil
	})
	apply("template-dir", "TEMPLATE_DIR", func(v string) error {
		cfg.TemplateDir = v
		return nil
	})
	apply("mutex-ttl", "MUTEX_TTL", func(v string) error {
		parsed, err := cast.ToDurationE(v)
		cfg.MutexTTL = parsed
		return err
	})
	apply("etcd-endpoint", "ETCD_ENDPOINT", func(v string) error {
		cfg.Etcd.Endpoint = v
		return nil
	})
	apply("etcd-namespace", "ETCD_NAMESPACE", func(v string) error {
		cfg.Etcd.Namespace = v
		return nil
	})
	apply("etcd-username", "ETCD_USERNAME", func(v string) error {
		cfg.Etcd.Username = v
		return nil
	})
	apply("etcd-password", "ETCD_PASSWORD", func(v string) error {
		cfg.Etcd.Password = v
		return nil
	})
	apply("telemetry-api-url", "TELEMETRY_API_URL", func(v string) error {
		cfg.TelemetryAPIURL = v
		return nil
	})
	apply("simulation-api-url", "SIMULATION_API_URL", func(v string) error {
		cfg.SimulationAPIURL = v
		return nil
	})

	return errs.ErrorOrNil()
}

package seeder

import (
	"context"

	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// SeedSimulation creates the default simulation from the template.
// The operation is idempotent on its own, independent of the completion flag:
// an existing default simulation is never touched.
func (s *Seeder) SeedSimulation(ctx context.Context) error {
	_, found, err := s.deps.Simulations.DefaultSimulation(ctx)
	if err != nil {
		s.logger.Errorf(ctx, "cannot check default simulation: %s", err)
		return errors.PrefixError(err, "cannot check default simulation")
	}
	if found {
		s.logger.Info(ctx, "skipped simulation seeding, default simulation exists")
		return nil
	}

	tmpl, err := s.deps.Templates.Load(s.config.TemplateName)
	if err != nil {
		return err
	}

	for i, sim := range tmpl.Simulations {
		if err := s.deps.Simulations.CreateSimulation(ctx, sim); err != nil {
			s.logger.Errorf(ctx, "cannot create simulation %d: %s", i+1, err)
			return errors.PrefixErrorf(err, "cannot create simulation %d", i+1)
		}
	}
	s.logger.Infof(ctx, "seeded %d simulations", len(tmpl.Simulations))
	return nil
}

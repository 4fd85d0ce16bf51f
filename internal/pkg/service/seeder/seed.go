package seeder

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// seed runs the whole seed sequence.
// The first failed write aborts the sequence, resources written before it
// stay in place, re-running the sequence is safe, all writes are upserts.
func (s *Seeder) seed(ctx context.Context) error {
	tmpl, err := s.deps.Templates.Load(s.config.TemplateName)
	if err != nil {
		return err
	}

	// Data quality issues are logged, never abortive
	for _, issue := range tmpl.DataQualityIssues() {
		s.logger.Warnf(ctx, `template "%s": %s`, s.config.TemplateName, issue)
	}

	// A device-simulation deployment has no groups and rules of its own
	if !s.config.Mode.IsDeviceSimulation() {
		for _, group := range tmpl.Groups {
			logger := s.logger.With(attribute.String("group.id", group.ID))
			if err := s.deps.Groups.UpsertGroup(ctx, group); err != nil {
				logger.Errorf(ctx, `cannot seed group "%s": %s`, group.ID, err)
				return errors.PrefixErrorf(err, `cannot seed group "%s"`, group.ID)
			}
			logger.Infof(ctx, `seeded group "%s"`, group.ID)
		}

		for _, rule := range tmpl.Rules {
			logger := s.logger.With(attribute.String("rule.id", rule.ID))
			if err := s.deps.Rules.UpsertRule(ctx, rule); err != nil {
				logger.Errorf(ctx, `cannot seed rule "%s": %s`, rule.ID, err)
				return errors.PrefixErrorf(err, `cannot seed rule "%s"`, rule.ID)
			}
			logger.Infof(ctx, `seeded rule "%s"`, rule.ID)
		}
	}

	return s.SeedSimulation(ctx)
}

package template

import (
	"fmt"
)

// DataQualityIssues reports non-fatal problems in the template:
// duplicate group ids, duplicate rule ids and rules referencing a missing group.
// Seeding proceeds even with issues, they are only logged.
func (t *Template) DataQualityIssues() []string {
	var out []string

	groupIDs := make(map[string]bool)
	for _, group := range t.Groups {
		if groupIDs[group.ID] {
			out = append(out, fmt.Sprintf(`duplicate group id "%s"`, group.ID))
		}
		groupIDs[group.ID] = true
	}

	ruleIDs := make(map[string]bool)
	for _, rule := range t.Rules {
		if ruleIDs[rule.ID] {
			out = append(out, fmt.Sprintf(`duplicate rule id "%s"`, rule.ID))
		}
		ruleIDs[rule.ID] = true
		if !groupIDs[rule.GroupID] {
			out = append(out, fmt.Sprintf(`rule "%s" references unknown group "%s"`, rule.ID, rule.GroupID))
		}
	}

	return out
}

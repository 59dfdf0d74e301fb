package casestudies

import (
	"time"

	"casehub-backend/internal/workflow"
)

// Apply runs action on the record as role. On error the record is untouched.
func (c *CaseRecord) Apply(role workflow.Role, action workflow.Action, now time.Time) error {
	next, effect, err := workflow.Transition(role, action, c.Status)
	if err != nil {
		return err
	}
	c.Status = next
	switch effect {
	case workflow.EffectSetPublishedAt:
		ts := now
		c.PublishedAt = &ts
	case workflow.EffectClearPublishedAt:
		c.PublishedAt = nil
	}
	return nil
}

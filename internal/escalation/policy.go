package escalation

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/sla"
)

const (
	DefaultCooldown                  = 6 * time.Hour
	DefaultReescalationBusinessHours = 24.0
)

// Policy is the configuration the state machine evaluates against.
type Policy struct {
	Thresholds domain.ThresholdTable
	Calculator *sla.Calculator

	// Cooldown is the wall-clock time that must pass after an escalation
	// before the issue can escalate again.
	Cooldown time.Duration
	// ReescalationBusinessHours must also have accrued since the last escalation.
	ReescalationBusinessHours float64

	// LevelRoles lists the roles a level-N escalation is reassigned to.
	// Level 1 uses the threshold's target role unless overridden here.
	LevelRoles map[int][]domain.Role
	// FallbackRoles is tried once when the level role set yields nobody.
	FallbackRoles []domain.Role
	// NotifyRoles receive escalation notifications besides the reporter.
	NotifyRoles []domain.Role
}

// DefaultPolicy returns a policy with the standard cooldowns and role sets.
func DefaultPolicy(thresholds domain.ThresholdTable, calc *sla.Calculator) Policy {
	return Policy{
		Thresholds:                thresholds,
		Calculator:                calc,
		Cooldown:                  DefaultCooldown,
		ReescalationBusinessHours: DefaultReescalationBusinessHours,
		LevelRoles: map[int][]domain.Role{
			2: {domain.RoleManager},
			3: {domain.RoleManager, domain.RoleAdmin},
		},
		FallbackRoles: []domain.Role{domain.RoleManager, domain.RoleAdmin},
		NotifyRoles:   []domain.Role{domain.RoleManager, domain.RoleAdmin},
	}
}

// Validate checks the policy is complete.
func (p Policy) Validate() error {
	var errs []error
	if p.Calculator == nil {
		errs = append(errs, errors.New("policy requires a duration calculator"))
	}
	if len(p.Thresholds) == 0 {
		errs = append(errs, errors.New("policy requires escalation thresholds"))
	} else if err := p.Thresholds.Validate(domain.Priorities...); err != nil {
		errs = append(errs, err)
	}
	if p.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("negative cooldown %s", p.Cooldown))
	}
	if p.ReescalationBusinessHours < 0 {
		errs = append(errs, fmt.Errorf("negative re-escalation hours %v", p.ReescalationBusinessHours))
	}
	for level := range p.LevelRoles {
		if level < 1 || level > MaxLevel {
			errs = append(errs, fmt.Errorf("role set for unknown level %d", level))
		}
	}
	return errors.Join(errs...)
}

func (p Policy) rolesFor(level int, threshold domain.EscalationThreshold, trigger Trigger) []domain.Role {
	if trigger.TargetRole != nil {
		return []domain.Role{*trigger.TargetRole}
	}
	if roles, ok := p.LevelRoles[level]; ok && len(roles) > 0 {
		return append([]domain.Role(nil), roles...)
	}
	return []domain.Role{threshold.TargetRole}
}

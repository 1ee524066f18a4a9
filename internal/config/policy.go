package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/escalation"
	"github.com/spec-kit/grievance-service/internal/sla"
)

// DefaultThresholds is the threshold table used when no policy file overrides it.
func DefaultThresholds() []domain.EscalationThreshold {
	return []domain.EscalationThreshold{
		{Priority: domain.IssuePriorityLow, Hours: 72, TargetRole: domain.RoleAgent},
		{Priority: domain.IssuePriorityMedium, Hours: 48, TargetRole: domain.RoleAgent},
		{Priority: domain.IssuePriorityHigh, Hours: 12, TargetRole: domain.RoleManager},
		{Priority: domain.IssuePriorityCritical, Hours: 4, TargetRole: domain.RoleAdmin},
	}
}

// PolicyFile is the YAML layout of ESCALATION_POLICY_FILE.
type PolicyFile struct {
	Thresholds []struct {
		Priority   string  `yaml:"priority"`
		Hours      float64 `yaml:"hours"`
		TargetRole string  `yaml:"target_role"`
	} `yaml:"thresholds"`
	Cooldown                  string           `yaml:"cooldown"`
	ReescalationBusinessHours *float64         `yaml:"reescalation_business_hours"`
	LevelRoles                map[int][]string `yaml:"level_roles"`
	FallbackRoles             []string         `yaml:"fallback_roles"`
	NotifyRoles               []string         `yaml:"notify_roles"`
}

// ParsePolicyFile decodes a policy document, rejecting unknown keys.
func ParsePolicyFile(data []byte) (*PolicyFile, error) {
	var file PolicyFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode escalation policy: %w", err)
	}
	return &file, nil
}

// BuildBusinessHours converts the configured window into a calculator window.
func (b BusinessHoursConfig) BuildBusinessHours() (sla.BusinessHours, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return sla.BusinessHours{}, fmt.Errorf("invalid BUSINESS_HOURS_TZ %q: %w", b.Timezone, err)
	}
	days := make([]time.Weekday, 0, len(b.Weekdays))
	for _, name := range b.Weekdays {
		day, ok := weekdays[strings.ToLower(name)]
		if !ok {
			return sla.BusinessHours{}, fmt.Errorf("invalid weekday %q", name)
		}
		days = append(days, day)
	}
	window := sla.BusinessHours{StartHour: b.StartHour, EndHour: b.EndHour, Weekdays: days, Location: loc}
	return window, window.Validate()
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// EscalationPolicy assembles the escalation policy from the environment and,
// when configured, the YAML policy file. File values take precedence.
func (c *Config) EscalationPolicy() (escalation.Policy, error) {
	window, err := c.BusinessHours.BuildBusinessHours()
	if err != nil {
		return escalation.Policy{}, err
	}
	calc, err := sla.NewCalculator(window)
	if err != nil {
		return escalation.Policy{}, err
	}

	thresholds, err := domain.NewThresholdTable(DefaultThresholds()...)
	if err != nil {
		return escalation.Policy{}, err
	}
	policy := escalation.DefaultPolicy(thresholds, calc)
	policy.Cooldown = c.Escalation.Cooldown
	policy.ReescalationBusinessHours = c.Escalation.ReescalationBusinessHours

	var errs []error
	if roles, err := parseRoles(c.Escalation.LevelTwoRoles); err != nil {
		errs = append(errs, err)
	} else {
		policy.LevelRoles[2] = roles
	}
	if roles, err := parseRoles(c.Escalation.LevelThreeRoles); err != nil {
		errs = append(errs, err)
	} else {
		policy.LevelRoles[3] = roles
	}
	if policy.FallbackRoles, err = parseRoles(c.Escalation.FallbackRoles); err != nil {
		errs = append(errs, err)
	}
	if policy.NotifyRoles, err = parseRoles(c.Escalation.NotifyRoles); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return escalation.Policy{}, err
	}

	if c.Escalation.PolicyFile != "" {
		data, err := os.ReadFile(c.Escalation.PolicyFile)
		if err != nil {
			return escalation.Policy{}, fmt.Errorf("read escalation policy: %w", err)
		}
		file, err := ParsePolicyFile(data)
		if err != nil {
			return escalation.Policy{}, err
		}
		if err := file.applyTo(&policy); err != nil {
			return escalation.Policy{}, err
		}
	}

	return policy, policy.Validate()
}

func (f *PolicyFile) applyTo(policy *escalation.Policy) error {
	if len(f.Thresholds) > 0 {
		entries := make([]domain.EscalationThreshold, 0, len(f.Thresholds))
		for _, t := range f.Thresholds {
			entries = append(entries, domain.EscalationThreshold{
				Priority:   domain.IssuePriority(t.Priority),
				Hours:      t.Hours,
				TargetRole: domain.Role(t.TargetRole),
			})
		}
		table, err := domain.NewThresholdTable(entries...)
		if err != nil {
			return err
		}
		policy.Thresholds = table
	}
	if f.Cooldown != "" {
		cooldown, err := time.ParseDuration(f.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid policy cooldown: %w", err)
		}
		policy.Cooldown = cooldown
	}
	if f.ReescalationBusinessHours != nil {
		policy.ReescalationBusinessHours = *f.ReescalationBusinessHours
	}
	for level, names := range f.LevelRoles {
		roles, err := parseRoles(names)
		if err != nil {
			return err
		}
		policy.LevelRoles[level] = roles
	}
	if f.FallbackRoles != nil {
		roles, err := parseRoles(f.FallbackRoles)
		if err != nil {
			return err
		}
		policy.FallbackRoles = roles
	}
	if f.NotifyRoles != nil {
		roles, err := parseRoles(f.NotifyRoles)
		if err != nil {
			return err
		}
		policy.NotifyRoles = roles
	}
	return nil
}

// RoleRankMap maps each configured role to its tiebreak rank, lower first.
func (e EscalationConfig) RoleRankMap() (map[domain.Role]int, error) {
	roles, err := parseRoles(e.RoleRank)
	if err != nil {
		return nil, err
	}
	rank := make(map[domain.Role]int, len(roles))
	for i, role := range roles {
		rank[role] = i
	}
	return rank, nil
}

func parseRoles(names []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(names))
	for _, name := range names {
		role := domain.Role(strings.ToLower(strings.TrimSpace(name)))
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

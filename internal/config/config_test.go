package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ESCALATION_TICK_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Escalation.TickInterval)
	assert.Equal(t, 6*time.Hour, cfg.Escalation.Cooldown)
	assert.Equal(t, 24.0, cfg.Escalation.ReescalationBusinessHours)
	assert.Equal(t, []string{"agent", "manager", "admin"}, cfg.Escalation.RoleRank)
	assert.Equal(t, 9, cfg.BusinessHours.StartHour)
	assert.Equal(t, 17, cfg.BusinessHours.EndHour)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ESCALATION_TICK_INTERVAL", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ESCALATION_ROLE_RANK", "manager,agent,admin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Escalation.TickInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())

	rank, err := cfg.Escalation.RoleRankMap()
	require.NoError(t, err)
	assert.Equal(t, 0, rank[domain.RoleManager])
	assert.Equal(t, 1, rank[domain.RoleAgent])
}

func TestLoad_InvalidSeed(t *testing.T) {
	t.Setenv("ESCALATION_BALANCER_SEED", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestEscalationPolicy_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	policy, err := cfg.EscalationPolicy()
	require.NoError(t, err)

	critical, err := policy.Thresholds.Lookup(domain.IssuePriorityCritical)
	require.NoError(t, err)
	assert.Equal(t, 4.0, critical.Hours)
	assert.Equal(t, domain.RoleAdmin, critical.TargetRole)
	assert.Equal(t, []domain.Role{domain.RoleManager, domain.RoleAdmin}, policy.LevelRoles[3])
}

func TestEscalationPolicy_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  - {priority: low, hours: 96, target_role: agent}
  - {priority: medium, hours: 24, target_role: agent}
  - {priority: high, hours: 8, target_role: manager}
  - {priority: critical, hours: 2, target_role: manager}
cooldown: 2h
reescalation_business_hours: 8
level_roles:
  2: [admin]
`), 0o600))
	t.Setenv("ESCALATION_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	policy, err := cfg.EscalationPolicy()
	require.NoError(t, err)

	critical, err := policy.Thresholds.Lookup(domain.IssuePriorityCritical)
	require.NoError(t, err)
	assert.Equal(t, 2.0, critical.Hours)
	assert.Equal(t, domain.RoleManager, critical.TargetRole)
	assert.Equal(t, 2*time.Hour, policy.Cooldown)
	assert.Equal(t, 8.0, policy.ReescalationBusinessHours)
	assert.Equal(t, []domain.Role{domain.RoleAdmin}, policy.LevelRoles[2])
}

func TestEscalationPolicy_IncompleteFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  - {priority: low, hours: 96, target_role: agent}
`), 0o600))
	t.Setenv("ESCALATION_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.EscalationPolicy()
	assert.ErrorIs(t, err, domain.ErrThresholdMissing)
}

func TestParsePolicyFile_UnknownKey(t *testing.T) {
	_, err := ParsePolicyFile([]byte("threshold: []\n"))
	assert.Error(t, err)
}

func TestBuildBusinessHours_InvalidWeekday(t *testing.T) {
	_, err := BusinessHoursConfig{StartHour: 9, EndHour: 17, Weekdays: []string{"funday"}, Timezone: "UTC"}.BuildBusinessHours()
	assert.Error(t, err)
}

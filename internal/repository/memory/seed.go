package memory

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// Seed is the YAML document loaded into a Store for local runs.
type Seed struct {
	Users  []SeedUser  `yaml:"users"`
	Issues []SeedIssue `yaml:"issues"`
}

// SeedUser describes a directory account.
type SeedUser struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
	Inactive bool   `yaml:"inactive"`
}

// SeedIssue describes an issue. CreatedAt is RFC3339.
type SeedIssue struct {
	ID              string     `yaml:"id"`
	Title           string     `yaml:"title"`
	ReporterID      string     `yaml:"reporter"`
	Priority        string     `yaml:"priority"`
	Status          string     `yaml:"status"`
	City            string     `yaml:"city"`
	Cluster         string     `yaml:"cluster"`
	AssigneeID      string     `yaml:"assignee"`
	EscalationLevel int        `yaml:"escalation_level"`
	CreatedAt       time.Time  `yaml:"created_at"`
	ClosedAt        *time.Time `yaml:"closed_at"`
}

// LoadSeedFile reads path and applies it to s.
func (s *Store) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return s.LoadSeed(data)
}

// LoadSeed decodes a seed document and inserts its users and issues.
func (s *Store) LoadSeed(data []byte) error {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, u := range seed.Users {
		role := domain.Role(u.Role)
		if u.ID == "" || !role.Valid() {
			return fmt.Errorf("seed user %q: invalid id or role %q", u.ID, u.Role)
		}
		s.PutUser(domain.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: role, Active: !u.Inactive})
	}

	for _, si := range seed.Issues {
		issue, err := si.toIssue(s.now())
		if err != nil {
			return err
		}
		s.PutIssue(issue)
	}
	return nil
}

func (si SeedIssue) toIssue(now time.Time) (domain.Issue, error) {
	priority := domain.IssuePriority(si.Priority)
	if si.ID == "" || !priority.Valid() {
		return domain.Issue{}, fmt.Errorf("seed issue %q: invalid id or priority %q", si.ID, si.Priority)
	}
	status := domain.IssueStatusOpen
	if si.Status != "" {
		status = domain.IssueStatus(si.Status)
		if !status.Valid() {
			return domain.Issue{}, fmt.Errorf("seed issue %q: invalid status %q", si.ID, si.Status)
		}
	}
	created := si.CreatedAt
	if created.IsZero() {
		created = now
	}
	issue := domain.Issue{
		ID:              si.ID,
		Title:           si.Title,
		ReporterID:      si.ReporterID,
		Priority:        priority,
		Status:          status,
		City:            si.City,
		Cluster:         si.Cluster,
		EscalationLevel: si.EscalationLevel,
		CreatedAt:       created.UTC(),
		UpdatedAt:       created.UTC(),
		ClosedAt:        si.ClosedAt,
	}
	if si.AssigneeID != "" {
		assignee := si.AssigneeID
		issue.AssigneeID = &assignee
	}
	if status.IsTerminal() && issue.ClosedAt == nil {
		closed := now
		issue.ClosedAt = &closed
	}
	return issue, nil
}

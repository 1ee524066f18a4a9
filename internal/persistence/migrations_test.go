package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNames_Embedded(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}

func TestRunMigrations_NoPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}

func TestInitMigration_PriorClosuresIsTimestampArray(t *testing.T) {
	raw, err := migrationFiles.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	sql := string(raw)
	// The issue repository scans and writes prior_closures as []time.Time.
	assert.Regexp(t, `prior_closures\s+TIMESTAMPTZ\[\] NOT NULL`, sql)
	assert.NotRegexp(t, `prior_closures\s+JSONB`, sql)
	assert.Regexp(t, `detail\s+JSONB\s+NOT NULL`, sql)
}

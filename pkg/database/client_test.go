package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientCreatesSchemaAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "workflows.db")
	ctx := context.Background()

	client, err := NewClient(ctx, path)
	require.NoError(t, err)

	var count int
	err = client.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='project_settings'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, client.Close())

	// Re-opening must tolerate already-applied migrations.
	client, err = NewClient(ctx, path)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.DB().ExecContext(ctx,
		"INSERT INTO project_settings (github_user_id, project_id, workflow_config) VALUES (?, ?, ?)",
		"__workflow__", "PVT_1", `{"project_id":"PVT_1"}`)
	require.NoError(t, err)

	health, err := Health(ctx, client.DB(), client.Path())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/database"
)

func newTestSettings(t *testing.T) *SettingsService {
	t.Helper()
	client, err := database.NewClient(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewSettingsService(client)
}

func testConfig(projectID string) *config.WorkflowConfiguration {
	return &config.WorkflowConfiguration{
		ProjectID:   projectID,
		RepoOwner:   "acme",
		RepoName:    "widgets",
		StatusNames: config.DefaultStatusNames(),
		AgentMappings: map[string][]config.AgentAssignment{
			"Ready":       {{Slug: "speckit.specify"}, {Slug: "speckit.plan"}},
			"In Progress": {{Slug: "speckit.implement"}},
		},
	}
}

func TestSaveAndGetWorkflowConfig(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", testConfig("PVT_1")))

	got, err := svc.GetWorkflowConfig(ctx, "alice", "PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.RepoOwner)
	assert.Equal(t, []string{"speckit.specify", "speckit.plan"}, got.AgentSlugsForStatus("Ready"))
}

func TestGetWorkflowConfigIsCaseInsensitive(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "Alice", testConfig("PVT_Abc")))
	svc.InvalidateCache()

	got, err := svc.GetWorkflowConfig(ctx, "alice", "pvt_abc")
	require.NoError(t, err)
	assert.Equal(t, "PVT_Abc", got.ProjectID)
}

func TestGetWorkflowConfigFallsBackToCanonicalUser(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "", testConfig("PVT_1")))

	got, err := svc.GetWorkflowConfig(ctx, "bob", "PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "PVT_1", got.ProjectID)
}

func TestGetWorkflowConfigNotFound(t *testing.T) {
	svc := newTestSettings(t)

	_, err := svc.GetWorkflowConfig(context.Background(), "alice", "PVT_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	svc := newTestSettings(t)

	bad := testConfig("PVT_1")
	bad.RepoOwner = ""
	err := svc.SaveWorkflowConfig(context.Background(), "alice", bad)
	assert.True(t, IsValidationError(err))
}

func TestSaveOverwritesExistingRow(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", testConfig("PVT_1")))

	updated := testConfig("PVT_1")
	updated.RepoName = "gadgets"
	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", updated))
	svc.InvalidateCache()

	got, err := svc.GetWorkflowConfig(ctx, "alice", "PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "gadgets", got.RepoName)
}

func TestLegacyMappingsUpgrade(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	_, err := svc.db.DB().ExecContext(ctx, `
		INSERT INTO project_settings (github_user_id, project_id, agent_pipeline_mappings)
		VALUES (?, ?, ?)`,
		CanonicalUser, "PVT_legacy", `{"Ready": ["speckit.specify"], "In Progress": ["speckit.implement"]}`)
	require.NoError(t, err)

	got, err := svc.GetWorkflowConfig(ctx, "", "PVT_legacy")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultStatusNames(), got.StatusNames)
	assert.Equal(t, []string{"speckit.specify"}, got.AgentSlugsForStatus("Ready"))
	assert.Equal(t, []string{"speckit.implement"}, got.AgentSlugsForStatus("In Progress"))
}

func TestDeleteWorkflowConfig(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", testConfig("PVT_1")))
	require.NoError(t, svc.DeleteWorkflowConfig(ctx, "alice", "PVT_1"))

	_, err := svc.GetWorkflowConfig(ctx, "alice", "PVT_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProjectIDs(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "", testConfig("PVT_a")))
	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", testConfig("PVT_b")))

	ids, err := svc.ListProjectIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"PVT_a", "PVT_b"}, ids)
}

func TestCachedReadReturnsIsolatedCopy(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveWorkflowConfig(ctx, "alice", testConfig("PVT_1")))

	first, err := svc.GetWorkflowConfig(ctx, "alice", "PVT_1")
	require.NoError(t, err)
	first.RepoName = "mutated"

	second, err := svc.GetWorkflowConfig(ctx, "alice", "PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "widgets", second.RepoName)
}

package state

import (
	"testing"

	"github.com/Boykai/github-workflows/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineStoreSetGetIsolation(t *testing.T) {
	store := NewPipelineStore()
	p := &models.PipelineState{
		IssueNumber: 42,
		Status:      "Ready",
		Agents:      []string{"a", "b"},
	}
	store.Set(p)

	// Mutating the original must not leak into the store.
	p.Agents[0] = "mutated"

	got, ok := store.Get(42)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Agents)

	// Mutating the returned copy must not leak either.
	got.Agents[1] = "mutated"
	again, _ := store.Get(42)
	assert.Equal(t, []string{"a", "b"}, again.Agents)
}

func TestPipelineStoreAdvanceKeepsPrefixInvariant(t *testing.T) {
	store := NewPipelineStore()
	store.Set(&models.PipelineState{
		IssueNumber: 7,
		Agents:      []string{"a", "b"},
	})

	p, ok := store.Advance(7)
	require.True(t, ok)
	assert.Equal(t, 1, p.CurrentAgentIndex)
	assert.Equal(t, []string{"a"}, p.CompletedAgents)
	assert.Equal(t, p.Agents[:p.CurrentAgentIndex], p.CompletedAgents)

	p, _ = store.Advance(7)
	assert.True(t, p.IsComplete())
	assert.Equal(t, []string{"a", "b"}, p.CompletedAgents)

	// Advancing past the end is a no-op.
	p, _ = store.Advance(7)
	assert.Equal(t, 2, p.CurrentAgentIndex)
	assert.Equal(t, []string{"a", "b"}, p.CompletedAgents)
}

func TestPipelineStoreRemove(t *testing.T) {
	store := NewPipelineStore()
	store.Set(&models.PipelineState{IssueNumber: 1})
	store.Remove(1)
	_, ok := store.Get(1)
	assert.False(t, ok)
}

func TestPipelineStoreMergeSubIssues(t *testing.T) {
	store := NewPipelineStore()
	store.Set(&models.PipelineState{
		IssueNumber:    5,
		AgentSubIssues: map[string]models.SubIssueRef{"a": {Number: 10}},
	})

	store.MergeSubIssues(5, map[string]models.SubIssueRef{
		"a": {Number: 99}, // must not overwrite
		"b": {Number: 11},
	})

	p, _ := store.Get(5)
	assert.Equal(t, 10, p.AgentSubIssues["a"].Number)
	assert.Equal(t, 11, p.AgentSubIssues["b"].Number)
}

func TestBranchStoreFirstWriteWins(t *testing.T) {
	store := NewBranchStore()
	store.Set(42, models.MainBranchInfo{Branch: "copilot/issue-42", PRNumber: 100, HeadSHA: "aaa"})
	store.Set(42, models.MainBranchInfo{Branch: "other-branch", PRNumber: 200, HeadSHA: "bbb"})

	info, ok := store.Get(42)
	require.True(t, ok)
	assert.Equal(t, "copilot/issue-42", info.Branch)
	assert.Equal(t, 100, info.PRNumber)
	assert.Equal(t, "aaa", info.HeadSHA)
}

func TestBranchStoreUpdateHeadSHA(t *testing.T) {
	store := NewBranchStore()
	assert.False(t, store.UpdateHeadSHA(42, "ccc"), "no branch recorded yet")

	store.Set(42, models.MainBranchInfo{Branch: "copilot/issue-42", PRNumber: 100, HeadSHA: "aaa"})
	assert.True(t, store.UpdateHeadSHA(42, "ccc"))

	info, _ := store.Get(42)
	assert.Equal(t, "ccc", info.HeadSHA)
	assert.Equal(t, "copilot/issue-42", info.Branch, "branch immutable")
	assert.Equal(t, 100, info.PRNumber, "PR number immutable")
}

func TestSubIssueStoreMergeNeverOverwrites(t *testing.T) {
	store := NewSubIssueStore()
	store.Set(1, map[string]models.SubIssueRef{"a": {Number: 10, URL: "u10"}})
	store.Set(1, map[string]models.SubIssueRef{"a": {Number: 20}, "b": {Number: 30}})

	m := store.Get(1)
	require.Len(t, m, 2)
	assert.Equal(t, 10, m["a"].Number)
	assert.Equal(t, 30, m["b"].Number)

	ref, ok := store.Lookup(1, "b")
	require.True(t, ok)
	assert.Equal(t, 30, ref.Number)
}

func TestSubIssueStoreSurvivesPipelineReset(t *testing.T) {
	stores := NewStores()
	stores.Pipelines.Set(&models.PipelineState{IssueNumber: 3, Status: "Ready"})
	stores.SubIssues.Set(3, map[string]models.SubIssueRef{"a": {Number: 40}})

	// Status transition removes the pipeline but not the sub-issue map.
	stores.Pipelines.Remove(3)

	_, ok := stores.Pipelines.Get(3)
	assert.False(t, ok)
	assert.Len(t, stores.SubIssues.Get(3), 1)
}

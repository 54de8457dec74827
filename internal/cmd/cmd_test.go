package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/assetforge/pkg/domain"
)

func TestRenderSummary(t *testing.T) {
	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	snap := &domain.RunSnapshot{
		RunID:  "run-42",
		Status: domain.RunStatusCompleted,
		Steps: []domain.StepState{
			{Name: "extract", Status: domain.StepStatusCompleted, StartTime: &start, EndTime: &end},
			{Name: "database", Status: domain.StepStatusFailed, RetryCount: 2, StartTime: &start, EndTime: &end, ErrorMessage: "disk full"},
			{Name: "package", Status: domain.StepStatusSkipped, ErrorMessage: `upstream step "database" failed`},
		},
		Summary: domain.Summary{Total: 3, Completed: 1, Failed: 1, Skipped: 1},
	}

	out := renderSummary(snap)
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "extract")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, `upstream step "database" failed`)
	assert.Contains(t, out, "3 steps: 1 completed, 1 failed, 1 skipped, 0 cancelled")
	assert.Contains(t, out, "with failures")

	lines := strings.Split(out, "\n")
	var packageLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "package") {
			packageLine = l
		}
	}
	require.NotEmpty(t, packageLine)
	assert.Contains(t, packageLine, "-")
}

func TestRenderSummaryAbortedRun(t *testing.T) {
	out := renderSummary(&domain.RunSnapshot{
		RunID:  "run-1",
		Status: domain.RunStatusAborted,
		Error:  "cyclic dependency",
	})
	assert.Contains(t, out, "Run aborted: cyclic dependency")
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommandPrintsOrder(t *testing.T) {
	t.Setenv("PUBLISH_ENABLED", "false")

	out, err := executeRoot(t, "validate", "--policy", "")
	require.NoError(t, err)

	assert.Contains(t, out, "8 steps, execution order:")
	extract := strings.Index(out, "extract")
	icons := strings.Index(out, "icons")
	pkg := strings.Index(out, "package")
	require.True(t, extract >= 0 && icons >= 0 && pkg >= 0, out)
	assert.Less(t, extract, icons)
	assert.Less(t, icons, pkg)
	assert.Contains(t, out, "after: whites, atlas, groups, database")
}

func TestValidateCommandAppliesPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`schema: assetforge.steps.v1
steps:
  groups:
    disabled: true
`), 0o644))

	_, err := executeRoot(t, "validate", "--policy", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unregistered step "groups"`)
}

func TestValidateCommandRejectsBadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema: assetforge.steps.v1\nsteps:\n  nosuch:\n    max_retries: 1\n"), 0o644))

	_, err := executeRoot(t, "validate", "--policy", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such step")
}

func TestVersionCommand(t *testing.T) {
	out, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

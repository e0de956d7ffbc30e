package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: volume_only
description: volume unlocks without a workout
clock: "2025-05-01"
steps:
  - action: check_volume
    args: {user: u1, total: 12000}
    expect:
      case: ok
      result: {achievementsUnlocked: [volume_10000]}
assertions:
  - type: count
    table: achievements
    where: {userId: u1}
    count: 1
`

const failingScenario = `name: wrong_count
description: asserts a count that does not hold
steps:
  - action: complete
    args: {user: u1}
assertions:
  - type: count
    table: streaks
    count: 2
`

func newTestCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := newTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := newTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := newTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := newTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"volume_only.yaml": passingScenario})

	buf, err := newTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ volume_only")
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"volume_only.yaml": passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	buf, err := newTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, CodeTestFailed, response.Error.Code)
	assert.Equal(t, 1, response.Data.Passed)
	assert.Equal(t, 1, response.Data.Failed)
	for _, s := range response.Data.Scenarios {
		if s.Name == "wrong_count" {
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "2 documents in streaks")
		}
	}
}

func TestTestCommandGoldenUpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"volume_only.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "volume_only.golden")

	buf, err := newTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "golden updated")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "volume_only"`)

	_, err = newTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	buf, err = newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Golden file mismatch")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: broken\n"})

	buf, err := newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Load error")
}

func TestTestHelpText(t *testing.T) {
	buf, err := newTestCmd(t, "text", "--help")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "in-memory store")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "streak-gap.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "streak-week.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ingest-rollback.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "streak-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "streak-")
	}
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	for _, sub := range []string{"subdir", "plans", "golden"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, sub), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, sub, "x.yaml"), []byte(""), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(tmpDir, "root.yaml"),
		filepath.Join(tmpDir, "subdir", "x.yaml"),
	}, files)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}

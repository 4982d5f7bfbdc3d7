// Test Type: Integration Test
// Description: Tests for the CLI surface - flags and end-to-end runs on a real filesystem

package rulesift_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulesift/rulesift/cmd/rulesift"
)

const matchARule = `
detection:
  condition: selection
  selection:
    a: 1
`

func writeRule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCmd(t *testing.T) {
	t.Run("matches_stdin_to_stdout", func(t *testing.T) {
		dir := t.TempDir()
		rulePath := writeRule(t, dir, "r1.yml", matchARule)

		var out, errOut bytes.Buffer
		cmd := rulesift.NewRootCmd()
		cmd.SetIn(strings.NewReader("{\"a\":1}\n{\"a\":2}\n"))
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"-r", rulePath})

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "{\"a\":1}\n", out.String())
	})

	t.Run("writes_per_rule_files_into_directory", func(t *testing.T) {
		dir := t.TempDir()
		rulePath := writeRule(t, dir, "r1.yml", matchARule)
		inputPath := writeRule(t, dir, "in.jsonl", "{\"a\":1}\n")
		outDir := filepath.Join(dir, "out")
		require.NoError(t, os.Mkdir(outDir, 0755))

		cmd := rulesift.NewRootCmd()
		cmd.SetArgs([]string{"-r", rulePath, "-i", inputPath, "-o", outDir})

		require.NoError(t, cmd.Execute())
		data, err := os.ReadFile(filepath.Join(outDir, "r1.yml"))
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n", string(data))
	})

	t.Run("check_mode_does_not_touch_outputs", func(t *testing.T) {
		dir := t.TempDir()
		rulePath := writeRule(t, dir, "r1.yml", matchARule)
		outDir := filepath.Join(dir, "out")
		require.NoError(t, os.Mkdir(outDir, 0755))

		cmd := rulesift.NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-r", rulePath, "-o", outDir, "--check"})

		require.NoError(t, cmd.Execute())
		exists, err := os.Stat(filepath.Join(outDir, "r1.yml"))
		assert.True(t, os.IsNotExist(err), "check mode must not create %v", exists)
	})

	t.Run("check_report_lists_every_attempted_rule", func(t *testing.T) {
		dir := t.TempDir()
		goodPath := writeRule(t, dir, "good.yml", matchARule)
		brokenPath := writeRule(t, dir, "broken.yml", "detection: [")

		var out bytes.Buffer
		cmd := rulesift.NewRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"-r", goodPath, "-r", brokenPath, "--check"})

		require.NoError(t, cmd.Execute())
		report := out.String()
		assert.Contains(t, report, "good.yml")
		assert.Contains(t, report, "broken.yml")
		assert.Contains(t, report, "true")
		assert.Contains(t, report, "false")
	})

	t.Run("no_valid_rules_fails", func(t *testing.T) {
		dir := t.TempDir()
		rulePath := writeRule(t, dir, "broken.yml", "detection: [")

		cmd := rulesift.NewRootCmd()
		cmd.SetIn(strings.NewReader(""))
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"-r", rulePath})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no rule could be validated")
	})

	t.Run("unknown_flag", func(t *testing.T) {
		cmd := rulesift.NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--frobnicate"})
		assert.Error(t, cmd.Execute())
	})

	t.Run("genconfig_prints_commented_defaults", func(t *testing.T) {
		var out bytes.Buffer
		cmd := rulesift.NewRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"genconfig"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "[logging]")
		assert.Contains(t, out.String(), "# verbosity")
	})
}

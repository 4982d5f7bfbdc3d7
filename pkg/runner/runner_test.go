// Test Type: Integration Test
// Description: Tests for the runner package - full pipeline behavior

package runner_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifterr "github.com/rulesift/rulesift/pkg/errors"
	"github.com/rulesift/rulesift/pkg/runner"
)

const validRule = `
detection:
  condition: selection
  selection:
    a: 1
`

const otherRule = `
detection:
  condition: selection
  selection:
    b: 2
`

// fails its own embedded examples
const selfContradictoryRule = `
detection:
  condition: selection
  selection:
    a: 1
true_negatives:
  - a: 1
`

func setupFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0644))
	}
	return fsys
}

func TestLoadRules(t *testing.T) {
	t.Run("tracks_validity_per_rule", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/rules/r2.yml": "detection: [",
			"/rules/r3.yml": selfContradictoryRule,
		})

		entries, err := runner.LoadRules(fsys, []string{"/rules/r1.yml", "/rules/r2.yml", "/rules/r3.yml", "/rules/absent.yml"})
		require.NoError(t, err)
		require.Len(t, entries, 4)

		assert.Equal(t, "r1.yml", entries[0].Name)
		assert.NotNil(t, entries[0].Rule)
		assert.Nil(t, entries[1].Rule)
		assert.Nil(t, entries[2].Rule)
		assert.Nil(t, entries[3].Rule)
	})

	t.Run("unusable_rule_name_aborts", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		for _, path := range []string{"..", ".", "/"} {
			_, err := runner.LoadRules(fsys, []string{path})
			assert.True(t, sifterr.IsCode(err, sifterr.ErrRuleName), "path %q", path)
		}
	})
}

func TestCheck(t *testing.T) {
	t.Run("one_row_per_attempted_rule", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/rules/r2.yml": "detection: [",
		})
		opts := runner.Options{
			RulePaths: []string{"/rules/r1.yml", "/rules/r2.yml"},
			Fs:        fsys,
		}

		reports, err := runner.Check(opts)
		require.NoError(t, err)
		assert.Equal(t, []runner.Report{
			{Name: "r1.yml", Valid: true},
			{Name: "r2.yml", Valid: false},
		}, reports)
	})

	t.Run("idempotent", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/rules/r2.yml": selfContradictoryRule,
		})
		opts := runner.Options{
			RulePaths: []string{"/rules/r1.yml", "/rules/r2.yml"},
			Fs:        fsys,
		}

		first, err := runner.Check(opts)
		require.NoError(t, err)
		second, err := runner.Check(opts)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestRun(t *testing.T) {
	t.Run("directory_scenario", func(t *testing.T) {
		// r1.yml is valid and matches {"a":1}; r2.yml is broken. Only the
		// validated rule gets a pre-created output file.
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/rules/r2.yml": "detection: [",
			"/in.jsonl":     "{\"a\":1}\n",
		})
		require.NoError(t, fsys.MkdirAll("/out", 0755))

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml", "/rules/r2.yml"},
			InputPaths: []string{"/in.jsonl"},
			OutputPath: "/out",
			Fs:         fsys,
		})
		require.NoError(t, err)

		data, err := afero.ReadFile(fsys, "/out/r1.yml")
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n", string(data))

		exists, err := afero.Exists(fsys, "/out/r2.yml")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("no_rule_validates", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": "detection: [",
			"/rules/r2.yml": selfContradictoryRule,
		})

		err := runner.Run(runner.Options{
			RulePaths: []string{"/rules/r1.yml", "/rules/r2.yml"},
			Fs:        fsys,
			Stdin:     strings.NewReader(""),
			Stdout:    &bytes.Buffer{},
		})
		require.Error(t, err)
		assert.True(t, sifterr.IsCode(err, sifterr.ErrNoValidRules))
		assert.Contains(t, err.Error(), "/rules/r1.yml")
		assert.Contains(t, err.Error(), "/rules/r2.yml")
	})

	t.Run("no_rules_at_all_matches_nothing", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{"/in.jsonl": "{\"a\":1}\n"})
		var out bytes.Buffer

		err := runner.Run(runner.Options{
			InputPaths: []string{"/in.jsonl"},
			Fs:         fsys,
			Stdout:     &out,
		})
		require.NoError(t, err)
		assert.Empty(t, out.String())
	})

	t.Run("stack_order_across_input_files", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/all.yml": "detection:\n  condition: selection\n  selection:\n    n: [1, 2, 3]\n",
			"/a.jsonl":       "{\"n\":1}\n",
			"/b.jsonl":       "{\"n\":2}\n{\"n\":3}\n",
		})
		var out bytes.Buffer

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/all.yml"},
			InputPaths: []string{"/a.jsonl", "/b.jsonl"},
			Fs:         fsys,
			Stdout:     &out,
		})
		require.NoError(t, err)
		assert.Equal(t, "{\"n\":2}\n{\"n\":3}\n{\"n\":1}\n", out.String())
	})

	t.Run("stdin_to_stdout", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{"/rules/r1.yml": validRule})
		var out bytes.Buffer

		err := runner.Run(runner.Options{
			RulePaths: []string{"/rules/r1.yml"},
			Fs:        fsys,
			Stdin:     strings.NewReader("{\"a\":1}\n{\"a\":2}\n{\"a\":1}\n"),
			Stdout:    &out,
		})
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n{\"a\":1}\n", out.String())
	})

	t.Run("decode_errors_are_skipped", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/in.jsonl":     "garbage\n\n{\"a\":1}\n",
		})
		var out bytes.Buffer

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml"},
			InputPaths: []string{"/in.jsonl"},
			Fs:         fsys,
			Stdout:     &out,
		})
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n", out.String())
	})

	t.Run("record_matching_several_rules_goes_to_each_file", func(t *testing.T) {
		bothRule := "detection:\n  condition: selection\n  selection:\n    a: 1\n"
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": bothRule,
			"/rules/r2.yml": bothRule,
			"/in.jsonl":     "{\"a\":1}\n",
		})
		require.NoError(t, fsys.MkdirAll("/out", 0755))

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml", "/rules/r2.yml"},
			InputPaths: []string{"/in.jsonl"},
			OutputPath: "/out",
			Fs:         fsys,
		})
		require.NoError(t, err)

		for _, name := range []string{"/out/r1.yml", "/out/r2.yml"} {
			data, err := afero.ReadFile(fsys, name)
			require.NoError(t, err)
			assert.Equal(t, "{\"a\":1}\n", string(data))
		}
	})

	t.Run("unopenable_initial_input_is_fatal", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{"/rules/r1.yml": validRule})

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml"},
			InputPaths: []string{"/missing.jsonl"},
			Fs:         fsys,
		})
		assert.True(t, sifterr.IsCode(err, sifterr.ErrInputOpen))
	})

	t.Run("existing_single_output_without_overwrite_is_fatal", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/in.jsonl":     "{\"a\":1}\n",
			"/out.jsonl":    "old\n",
		})

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml"},
			InputPaths: []string{"/in.jsonl"},
			OutputPath: "/out.jsonl",
			Fs:         fsys,
		})
		assert.True(t, sifterr.IsCode(err, sifterr.ErrOutputExists))
	})

	t.Run("overwrite_truncates_single_output", func(t *testing.T) {
		fsys := setupFs(t, map[string]string{
			"/rules/r1.yml": validRule,
			"/in.jsonl":     "{\"a\":1}\n",
			"/out.jsonl":    "old contents that are longer than the match\n",
		})

		err := runner.Run(runner.Options{
			RulePaths:  []string{"/rules/r1.yml"},
			InputPaths: []string{"/in.jsonl"},
			OutputPath: "/out.jsonl",
			Overwrite:  true,
			Fs:         fsys,
		})
		require.NoError(t, err)

		data, err := afero.ReadFile(fsys, "/out.jsonl")
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n", string(data))
	})
}

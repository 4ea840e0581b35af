package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleImport = `
guilds:
  "g1":
    config:
      xp_enabled: true
      xp_per_message: 5
      role_automation: true
      ai_enabled: true
      ai_mode: listen
      ai_channels: ["c1"]
      ai_context: "A server about gardening."
    role_rewards:
      - {level: 1, role_id: "r1"}
      - {level: 5, role_id: "r5"}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportThenReadBack(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "guilds.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sampleImport), 0o644))
	store := filepath.Join(dir, "data.json")

	out, err := execute(t, "--driver", "json", "--path", store, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "imported guild g1 (2 role rewards)")

	out, err = execute(t, "--driver", "json", "--path", store, "guilds")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^g1\s+true\s+listen\s+2$`, out)

	out, err = execute(t, "--driver", "json", "--path", store, "leaderboard", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "USER")

	out, err = execute(t, "--driver", "json", "--path", store, "profile", "g1", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "0 (0/100 to next)")
}

func TestImportRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("guilds:\n  g1:\n    config:\n      ai_mode: shout\n"), 0o644))

	_, err := execute(t, "--path", filepath.Join(dir, "data.json"), "import", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown ai_mode "shout"`)
}

func TestLevelsTable(t *testing.T) {
	out, err := execute(t, "levels", "--max", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Regexp(t, `(?m)^3\s+900\s`, out)
}

func TestProfileNeedsTwoArgs(t *testing.T) {
	_, err := execute(t, "profile", "g1")
	require.Error(t, err)
}

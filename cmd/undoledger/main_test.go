package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dshills/undoledger/internal/config"
	"github.com/dshills/undoledger/internal/logging"
)

const testScript = `
capacity: 10
tasks:
  - {op: add, title: A, priority: 1}
  - {op: add, title: B}
  - {op: undo}
  - {op: add, title: C, priority: 2}
  - {op: toggle, task: C}
  - {op: rename, task: missing, title: X}
  - {op: priority, task: C, priority: 9}
  - {op: jump, index: 7}
  - {op: redo}
settings:
  initial: {theme: light}
  steps:
    - {op: set, key: theme, value: dark}
    - {op: set, key: bad key, value: 1}
    - {op: merge, values: {font: mono, size: 12}}
    - {op: undo}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type yamlReport struct {
	Steps []struct {
		Ledger string `yaml:"ledger"`
		Step   int    `yaml:"step"`
		Op     string `yaml:"op"`
		Result string `yaml:"result"`
	} `yaml:"steps"`
	Tasks []struct {
		Title    string `yaml:"title"`
		Priority int    `yaml:"priority"`
		Done     bool   `yaml:"done"`
	} `yaml:"tasks"`
	TaskHistory []struct {
		Description string `yaml:"description"`
		IsCurrent   bool   `yaml:"is_current"`
	} `yaml:"task_history"`
	Settings map[string]any `yaml:"settings"`
}

func TestReplayYAML(t *testing.T) {
	path := writeFile(t, "script.yaml", testScript)
	var stdout, stderr bytes.Buffer

	code := run([]string{"replay", "--output", "yaml", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var rep yamlReport
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &rep))

	require.Len(t, rep.Tasks, 2)
	assert.Equal(t, "A", rep.Tasks[0].Title)
	assert.Equal(t, "C", rep.Tasks[1].Title)
	assert.True(t, rep.Tasks[1].Done)
	assert.Equal(t, 2, rep.Tasks[1].Priority)

	require.Len(t, rep.TaskHistory, 3)
	assert.Equal(t, `add "A"`, rep.TaskHistory[0].Description)
	assert.Equal(t, `toggle "C"`, rep.TaskHistory[2].Description)
	assert.True(t, rep.TaskHistory[2].IsCurrent)

	results := map[string]string{}
	for _, s := range rep.Steps {
		results[s.Ledger+"/"+s.Op+"/"+string(rune('0'+s.Step))] = s.Result
	}
	assert.Equal(t, "no change", results["tasks/rename/6"])
	assert.Contains(t, results["tasks/priority/7"], "invalid")
	assert.Equal(t, "out of range", results["tasks/jump/8"])
	assert.Equal(t, "no change", results["tasks/redo/9"])
	assert.Contains(t, results["settings/set/2"], "invalid")

	assert.Equal(t, map[string]any{"theme": "dark"}, rep.Settings)
}

func TestReplayText(t *testing.T) {
	path := writeFile(t, "script.yaml", testScript)
	var stdout, stderr bytes.Buffer

	code := run([]string{"replay", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "TASK HISTORY")
	assert.Contains(t, out, "SETTINGS HISTORY")
	assert.Contains(t, out, `* 2`)
}

func TestReplayCapacityFlag(t *testing.T) {
	path := writeFile(t, "script.yaml", testScript)
	var stdout, stderr bytes.Buffer

	code := run([]string{"replay", "--capacity", "1", "-o", "yaml", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var rep yamlReport
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &rep))
	require.Len(t, rep.TaskHistory, 1)
	assert.Equal(t, `toggle "C"`, rep.TaskHistory[0].Description)
}

func TestReplayUnknownOp(t *testing.T) {
	path := writeFile(t, "script.yaml", "tasks:\n  - {op: explode}\n")
	var stdout, stderr bytes.Buffer

	code := run([]string{"replay", path}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown op")
}

func TestReplayMetrics(t *testing.T) {
	script := writeFile(t, "script.yaml", "tasks:\n  - {op: add, title: A}\n")
	cfg := writeFile(t, "undoledger.toml", "[metrics]\nenabled = true\nnamespace = \"replay\"\n")
	var stdout, stderr bytes.Buffer

	code := run([]string{"replay", "--config", cfg, script}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), `replay_appends_total{ledger="tasks"} 1`)
}

func TestConfigCommand(t *testing.T) {
	cfgPath := writeFile(t, "undoledger.toml", "[ledger]\ncapacity = 7\n")
	var stdout, stderr bytes.Buffer

	code := run([]string{"config", "--config", cfgPath, "--log-level", "debug"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var got struct {
		Ledger struct {
			Capacity int `toml:"capacity"`
		} `toml:"ledger"`
		Logging struct {
			Level string `toml:"level"`
		} `toml:"logging"`
	}
	require.NoError(t, toml.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 7, got.Ledger.Capacity)
	assert.Equal(t, "debug", got.Logging.Level)
}

func TestConfigCommandRejectsInvalid(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"config", "--capacity", "0"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid configuration")
}

func TestReloadResizesHeldLedgers(t *testing.T) {
	ctx := context.Background()
	sc, err := readScript(writeFile(t, "script.yaml", testScript))
	require.NoError(t, err)

	s := &session{cfg: config.Default(), logger: logging.Discard()}
	r, err := replay(ctx, s, sc, sc.Capacity)
	require.NoError(t, err)
	require.Len(t, r.report().TaskHistory, 3)
	require.Len(t, r.report().SettingsHistory, 3)

	cfg := config.Default()
	cfg.Ledger.Capacity = 1
	var out bytes.Buffer
	require.NoError(t, r.reload(ctx, &out, cfg))

	rep := r.report()
	require.Len(t, rep.TaskHistory, 1)
	assert.Equal(t, `toggle "C"`, rep.TaskHistory[0].Description)
	assert.True(t, rep.TaskHistory[0].IsCurrent)
	require.Len(t, rep.SettingsHistory, 1)
	assert.Contains(t, out.String(), "# capacity 1")
	assert.Contains(t, out.String(), "TASK HISTORY")
}

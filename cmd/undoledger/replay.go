package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/undoledger/internal/command"
	"github.com/dshills/undoledger/internal/config"
	"github.com/dshills/undoledger/internal/ledger"
	"github.com/dshills/undoledger/internal/settings"
	"github.com/dshills/undoledger/internal/snapshot"
	"github.com/dshills/undoledger/internal/tasks"
)

// script is a replay file.
//
//	capacity: 10
//	tasks:
//	  - {op: add, title: Write design, priority: 2}
//	  - {op: toggle, task: Write design}
//	  - {op: undo}
//	settings:
//	  initial: {theme: light}
//	  steps:
//	    - {op: set, key: theme, value: dark}
type script struct {
	Capacity int            `yaml:"capacity"`
	Tasks    []step         `yaml:"tasks"`
	Settings settingsScript `yaml:"settings"`
}

type settingsScript struct {
	Initial map[string]any `yaml:"initial"`
	Steps   []step         `yaml:"steps"`
}

// step is one scripted verb. Which fields apply depends on Op.
type step struct {
	Op       string         `yaml:"op"`
	Task     string         `yaml:"task"`
	Title    string         `yaml:"title"`
	Priority int            `yaml:"priority"`
	Index    int            `yaml:"index"`
	Key      string         `yaml:"key"`
	Value    any            `yaml:"value"`
	Values   map[string]any `yaml:"values"`
	Name     string         `yaml:"name"`
}

// outcome is the result of one step.
type outcome struct {
	Ledger string `yaml:"ledger"`
	Step   int    `yaml:"step"`
	Op     string `yaml:"op"`
	Result string `yaml:"result"`
}

// report is the replay result written with --output yaml.
type report struct {
	Steps           []outcome      `yaml:"steps"`
	Tasks           []tasks.Task   `yaml:"tasks"`
	TaskHistory     []ledger.Info  `yaml:"task_history"`
	Settings        map[string]any `yaml:"settings,omitempty"`
	SettingsHistory []ledger.Info  `yaml:"settings_history,omitempty"`
}

var errUnknownOp = errors.New("unknown op")

func newReplayCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a YAML script of task and settings changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := readScript(args[0])
			if err != nil {
				return err
			}
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			capacity := sc.Capacity
			if cmd.Flags().Changed("capacity") {
				capacity = 0
			}

			r, err := replay(cmd.Context(), s, sc, capacity)
			if err != nil {
				return err
			}
			rep := r.report()

			switch output {
			case "yaml":
				enc := yaml.NewEncoder(c.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				if err := enc.Close(); err != nil {
					return err
				}
			case "text":
				if err := writeText(c.stdout, rep); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return s.writeMetrics(c.stderr)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, yaml)")
	return cmd
}

func readScript(path string) (script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return script{}, fmt.Errorf("read script: %w", err)
	}
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	return sc, nil
}

// replayed holds the managers a script ran against so they can be
// inspected or resized afterwards.
type replayed struct {
	steps    []outcome
	tasks    *tasks.Manager
	settings *settings.Manager
}

// replay runs every step. Validation failures and missing targets are
// recorded as outcomes; any other error stops the replay.
func replay(ctx context.Context, s *session, sc script, capacity int) (*replayed, error) {
	opts := s.options(capacity)
	r := &replayed{tasks: tasks.NewManager(opts...)}

	for i, st := range sc.Tasks {
		result, err := taskStep(ctx, r.tasks, st)
		if err != nil {
			return nil, fmt.Errorf("tasks step %d (%s): %w", i+1, st.Op, err)
		}
		r.steps = append(r.steps, outcome{Ledger: "tasks", Step: i + 1, Op: st.Op, Result: result})
	}

	if len(sc.Settings.Steps) == 0 && len(sc.Settings.Initial) == 0 {
		return r, nil
	}
	sm, err := settings.NewManager(sc.Settings.Initial, opts...)
	if err != nil {
		return nil, err
	}
	r.settings = sm
	for i, st := range sc.Settings.Steps {
		result, err := settingsStep(ctx, sm, st)
		if err != nil {
			return nil, fmt.Errorf("settings step %d (%s): %w", i+1, st.Op, err)
		}
		r.steps = append(r.steps, outcome{Ledger: "settings", Step: i + 1, Op: st.Op, Result: result})
	}
	return r, nil
}

func (r *replayed) report() report {
	rep := report{
		Steps:       r.steps,
		Tasks:       r.tasks.Tasks(),
		TaskHistory: r.tasks.History(),
	}
	if r.settings != nil {
		rep.Settings = r.settings.All()
		rep.SettingsHistory = r.settings.History()
	}
	return rep
}

// resize sets the capacity of every held ledger.
func (r *replayed) resize(ctx context.Context, capacity int) error {
	if err := r.tasks.SetCapacity(ctx, capacity); err != nil {
		return fmt.Errorf("resize tasks: %w", err)
	}
	if r.settings == nil {
		return nil
	}
	if err := r.settings.SetCapacity(ctx, capacity); err != nil {
		return fmt.Errorf("resize settings: %w", err)
	}
	return nil
}

// reload applies a reloaded configuration to the held ledgers and writes
// the resulting report.
func (r *replayed) reload(ctx context.Context, w io.Writer, cfg config.Config) error {
	if err := r.resize(ctx, cfg.Ledger.Capacity); err != nil {
		return err
	}
	fmt.Fprintf(w, "# capacity %d\n", cfg.Ledger.Capacity)
	return writeText(w, r.report())
}

func taskStep(ctx context.Context, m *tasks.Manager, st step) (string, error) {
	var (
		ok  bool
		err error
	)
	switch st.Op {
	case "add":
		var t tasks.Task
		t, err = m.Add(ctx, st.Title, st.Priority)
		ok = err == nil
		if ok {
			return "added " + t.ID.String(), nil
		}
	case "remove":
		ok, err = m.Remove(ctx, resolveTask(m, st.Task))
	case "rename":
		_, ok, err = m.Rename(ctx, resolveTask(m, st.Task), st.Title)
	case "priority":
		_, ok, err = m.SetPriority(ctx, resolveTask(m, st.Task), st.Priority)
	case "toggle":
		_, ok, err = m.Toggle(ctx, resolveTask(m, st.Task))
	case "undo":
		ok, err = m.Undo(ctx)
	case "redo":
		ok, err = m.Redo(ctx)
	case "jump":
		err = m.JumpTo(ctx, st.Index)
		ok = err == nil
	case "clear":
		err = m.Clear(ctx)
		ok = err == nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownOp, st.Op)
	}
	return describe(ok, err)
}

func settingsStep(ctx context.Context, m *settings.Manager, st step) (string, error) {
	var (
		ok  bool
		err error
	)
	switch st.Op {
	case "set":
		err = m.Set(ctx, st.Key, st.Value)
		ok = err == nil
	case "delete":
		ok, err = m.Delete(ctx, st.Key)
	case "merge":
		err = m.Merge(ctx, st.Values)
		ok = err == nil
	case "reset":
		err = m.Reset(ctx)
		ok = err == nil
	case "checkpoint":
		err = m.Checkpoint(ctx, st.Name)
		ok = err == nil
	case "undo":
		ok, err = m.Undo(ctx)
	case "redo":
		ok, err = m.Redo(ctx)
	case "jump":
		err = m.JumpTo(ctx, st.Index)
		ok = err == nil
	case "clear":
		err = m.Clear(ctx)
		ok = err == nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownOp, st.Op)
	}
	return describe(ok, err)
}

// resolveTask accepts a task ID or title.
func resolveTask(m *tasks.Manager, ref string) uuid.UUID {
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	if t, ok := m.Find(ref); ok {
		return t.ID
	}
	return uuid.Nil
}

func describe(ok bool, err error) (string, error) {
	var ve *command.ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid: " + ve.Error(), nil
	case errors.Is(err, snapshot.ErrSerialization):
		return "invalid: " + err.Error(), nil
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return "out of range", nil
	case err != nil:
		return "", err
	case !ok:
		return "no change", nil
	default:
		return "ok", nil
	}
}

func writeText(w io.Writer, rep report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "LEDGER\tSTEP\tOP\tRESULT")
	for _, o := range rep.Steps {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", o.Ledger, o.Step, o.Op, o.Result)
	}

	fmt.Fprintln(tw, "\nTITLE\tPRIORITY\tDONE\tID")
	for _, t := range rep.Tasks {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", t.Title, t.Priority, t.Done, t.ID)
	}

	writeHistory(tw, "TASK HISTORY", rep.TaskHistory)
	if rep.Settings != nil {
		fmt.Fprintln(tw, "\nKEY\tVALUE")
		for _, key := range slices.Sorted(maps.Keys(rep.Settings)) {
			fmt.Fprintf(tw, "%s\t%v\n", key, rep.Settings[key])
		}
		writeHistory(tw, "SETTINGS HISTORY", rep.SettingsHistory)
	}
	return tw.Flush()
}

func writeHistory(w io.Writer, title string, hist []ledger.Info) {
	fmt.Fprintf(w, "\n%s\n", title)
	for _, h := range hist {
		marker := " "
		if h.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d\t%s\t%s\n", marker, h.Index, h.Description, h.Timestamp.Format("15:04:05.000"))
	}
}

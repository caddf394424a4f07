package tui

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/aristath/taskflow/internal/config"
)

// Save targets offered by the settings form.
const (
	SaveProject = "project"
	SaveGlobal  = "global"
)

// Settings holds the values edited by the settings form.
type Settings struct {
	GlobalPath  string
	ProjectPath string
	Backends    []string // Selectable backend names, sorted

	SaveTarget         string
	Backend            string
	MaxParallelTasks   int
	FailFast           bool
	MaxSelfCorrections int
	StrictFileScopes   bool
}

// NewSettings pre-fills the form values from cfg.
func NewSettings(cfg *config.Config, globalPath, projectPath string) *Settings {
	backends := make([]string, 0, len(cfg.Backends))
	for name := range cfg.Backends {
		backends = append(backends, name)
	}
	slices.Sort(backends)

	return &Settings{
		GlobalPath:         globalPath,
		ProjectPath:        projectPath,
		Backends:           backends,
		SaveTarget:         SaveProject,
		Backend:            cfg.Backend,
		MaxParallelTasks:   cfg.Execution.MaxParallelTasks,
		FailFast:           cfg.Execution.FailFast,
		MaxSelfCorrections: cfg.Execution.MaxSelfCorrections,
		StrictFileScopes:   cfg.Execution.StrictFileScopes,
	}
}

// Apply copies the edited values back into cfg.
func (s *Settings) Apply(cfg *config.Config) {
	cfg.Backend = s.Backend
	cfg.Execution.MaxParallelTasks = s.MaxParallelTasks
	cfg.Execution.FailFast = s.FailFast
	cfg.Execution.MaxSelfCorrections = s.MaxSelfCorrections
	cfg.Execution.StrictFileScopes = s.StrictFileScopes
}

// Path returns the file the settings are saved to.
func (s *Settings) Path() string {
	if s.SaveTarget == SaveGlobal {
		return s.GlobalPath
	}
	return s.ProjectPath
}

// NewSettingsForm builds the huh form bound to s.
func NewSettingsForm(s *Settings) *huh.Form {
	backends := make([]huh.Option[string], 0, len(s.Backends))
	for _, name := range s.Backends {
		backends = append(backends, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption(fmt.Sprintf("Project (%s)", s.ProjectPath), SaveProject),
					huh.NewOption(fmt.Sprintf("Global (%s)", s.GlobalPath), SaveGlobal),
				).
				Value(&s.SaveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("backend").
				Title("Backend").
				Description("Agent CLI that executes the tasks").
				Options(backends...).
				Value(&s.Backend),
		).Title("Backend"),

		huh.NewGroup(
			huh.NewSelect[int]().
				Key("maxParallelTasks").
				Title("Max Parallel Tasks").
				Options(intOptions(1, 5)...).
				Value(&s.MaxParallelTasks),

			huh.NewConfirm().
				Key("failFast").
				Title("Fail Fast").
				Description("Stop starting new tasks after the first failure").
				Value(&s.FailFast),

			huh.NewSelect[int]().
				Key("maxSelfCorrections").
				Title("Max Self-Corrections").
				Description("Follow-up attempts after a failed task").
				Options(intOptions(0, 10)...).
				Value(&s.MaxSelfCorrections),

			huh.NewConfirm().
				Key("strictFileScopes").
				Title("Strict File Scopes").
				Description("Reject independent tasks that declare no files").
				Value(&s.StrictFileScopes),
		).Title("Execution"),
	)
}

func intOptions(lo, hi int) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		opts = append(opts, huh.NewOption(strconv.Itoa(i), i))
	}
	return opts
}

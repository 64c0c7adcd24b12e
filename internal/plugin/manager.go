package plugin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"terminus/internal/util"
)

var projectNamePattern = regexp.MustCompile(`^[a-z0-9]([_.-]?[a-z0-9]+)*/[a-z0-9](([_.]|-{1,2})?[a-z0-9]+)*$`)

// Options locates the directories the manager works on.
type Options struct {
	PluginsDir      string
	DependenciesDir string
	BackupDir       string
	// KeepBackups leaves backup copies in BackupDir after successful operations.
	KeepBackups bool
	ComposerBin string
}

// Manager installs and removes plugins by driving composer, with backup and rollback
// around every mutation.
type Manager struct {
	opts     Options
	runner   Runner
	lookPath func(string) (string, error)
}

func NewManager(opts Options, runner Runner) *Manager {
	if opts.ComposerBin == "" {
		opts.ComposerBin = "composer"
	}
	return &Manager{opts: opts, runner: runner, lookPath: exec.LookPath}
}

// SetLookPath replaces how the composer binary is located on PATH.
func (m *Manager) SetLookPath(fn func(string) (string, error)) {
	m.lookPath = fn
}

// CheckRequirements verifies composer is available for plugin management.
func (m *Manager) CheckRequirements(ctx context.Context) error {
	return checkComposer(ctx, m.runner, m.opts.ComposerBin, m.lookPath)
}

// List returns the installed plugins.
func (m *Manager) List() ([]*Plugin, error) {
	return Discover(m.opts.PluginsDir)
}

// Find resolves an installed plugin by full or short name.
func (m *Manager) Find(project string) (*Plugin, error) {
	return Find(m.opts.PluginsDir, project)
}

// Uninstall removes each project in order. A failing project never stops the batch.
func (m *Manager) Uninstall(ctx context.Context, projects []string) []*Outcome {
	outcomes := make([]*Outcome, 0, len(projects))
	for _, project := range projects {
		outcome := m.UninstallOne(ctx, project)
		if outcome.OK() {
			util.Log.Infof("%s was removed successfully.", project)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// UninstallOne removes a single project.
func (m *Manager) UninstallOne(ctx context.Context, project string) *Outcome {
	outcome := newOutcome(project)

	// --- 1. Resolve ---
	p, err := m.Find(project)
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			util.Log.Errorf("%s is not installed.", project)
			outcome.fail(StateNotInstalled, err)
			return outcome
		}
		if errors.Is(err, ErrAmbiguousProject) {
			util.Log.Errorf("%v. Use the full package name.", err)
			outcome.fail(StateFailed, err)
			return outcome
		}
		util.Log.Errorf("Failed to look up %s: %v", project, err)
		outcome.fail(StateFailed, err)
		return outcome
	}

	// --- 2. Backup ---
	backups, err := m.backupAll()
	if err != nil {
		util.Log.Errorf("Could not back up plugin directories, %s left untouched: %v", project, err)
		outcome.fail(StateFailed, err)
		return outcome
	}
	outcome.advance(StateBackedUp)

	err = m.runSteps(ctx, outcome,
		step{StateDependenciesUpdated, m.updateDependencies},
		step{StateRemovedFromDeps, func(ctx context.Context) error {
			return m.composer(ctx, "Error removing package in terminus-dependencies.", "remove", "-d", m.opts.DependenciesDir, p.Name)
		}},
		step{StateRepoDeregistered, func(ctx context.Context) error {
			return m.deregisterRepository(p)
		}},
		step{StateRemovedFromPluginDir, func(ctx context.Context) error {
			return m.composer(ctx, "Error removing package in terminus-plugins.", "remove", "-d", m.opts.PluginsDir, p.Name)
		}},
	)
	if err != nil {
		m.rollback(outcome, backups, err)
		return outcome
	}

	util.Log.Infof("Uninstalled %s.", p.Name)
	m.finish(outcome, backups)
	return outcome
}

// Install adds each project in order. A failing project never stops the batch.
func (m *Manager) Install(ctx context.Context, projects []string) []*Outcome {
	outcomes := make([]*Outcome, 0, len(projects))
	for _, project := range projects {
		outcome := m.InstallOne(ctx, project)
		if outcome.OK() {
			util.Log.Infof("%s was installed successfully.", project)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// InstallOne installs a single project.
func (m *Manager) InstallOne(ctx context.Context, project string) *Outcome {
	outcome := newOutcome(project)

	if !projectNamePattern.MatchString(project) {
		err := fmt.Errorf("%s: %w (expected <vendor>/<package>)", project, ErrInvalidProject)
		util.Log.Errorf("%s is not a valid project name. Use the form <vendor>/<package>.", project)
		outcome.fail(StateFailed, err)
		return outcome
	}
	if existing, err := m.Find(project); err == nil {
		util.Log.Errorf("%s is already installed.", project)
		outcome.fail(StateAlreadyInstalled, fmt.Errorf("%s: %w", existing.Name, ErrAlreadyInstalled))
		return outcome
	} else if !errors.Is(err, ErrNotInstalled) {
		outcome.fail(StateFailed, err)
		return outcome
	}

	backups, err := m.backupAll()
	if err != nil {
		util.Log.Errorf("Could not back up plugin directories, %s not installed: %v", project, err)
		outcome.fail(StateFailed, err)
		return outcome
	}
	outcome.advance(StateBackedUp)

	err = m.runSteps(ctx, outcome,
		step{StateRequired, func(ctx context.Context) error {
			if _, err := EnsureManifest(m.opts.PluginsDir, PluginsPackageName); err != nil {
				return err
			}
			return m.composer(ctx, "Error installing package in terminus-plugins.", "require", "-d", m.opts.PluginsDir, project)
		}},
		step{StateVerified, func(ctx context.Context) error {
			if _, err := m.Find(project); err != nil {
				return fmt.Errorf("%s is not a valid Terminus plugin: %w", project, ErrNotAPlugin)
			}
			return nil
		}},
		step{StateDependenciesUpdated, m.updateDependencies},
	)
	if err != nil {
		m.rollback(outcome, backups, err)
		return outcome
	}

	util.Log.Infof("Installed %s.", project)
	m.finish(outcome, backups)
	return outcome
}

type step struct {
	state State
	run   func(ctx context.Context) error
}

func (m *Manager) runSteps(ctx context.Context, outcome *Outcome, steps ...step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(ctx); err != nil {
			return err
		}
		outcome.advance(s.state)
	}
	return nil
}

func (m *Manager) backupAll() ([]*Backup, error) {
	plugins, err := BackupDir(m.opts.PluginsDir, m.opts.BackupDir, "plugins")
	if err != nil {
		return nil, err
	}
	deps, err := BackupDir(m.opts.DependenciesDir, m.opts.BackupDir, "dependencies")
	if err != nil {
		_ = plugins.Discard()
		return nil, err
	}
	return []*Backup{plugins, deps}, nil
}

func (m *Manager) finish(outcome *Outcome, backups []*Backup) {
	outcome.advance(StateDone)
	if m.opts.KeepBackups {
		for _, b := range backups {
			util.Log.Infof("Kept %s backup at %s", b.Label, b.Path)
		}
		return
	}
	for _, b := range backups {
		if err := b.Discard(); err != nil {
			util.Log.Warnf("%v", err)
		}
	}
}

func (m *Manager) rollback(outcome *Outcome, backups []*Backup, cause error) {
	util.Log.Error(cause.Error())
	util.Log.Warnf("Attempting rollback of %s...", outcome.Project)

	var restoreErrs []error
	for _, b := range backups {
		if err := b.Restore(); err != nil {
			restoreErrs = append(restoreErrs, err)
		}
	}
	if len(restoreErrs) > 0 {
		for _, b := range backups {
			util.Log.Errorf("Backup of %s directory kept at %s for manual recovery.", b.Label, b.Path)
		}
		outcome.fail(StateFailed, errors.Join(append([]error{cause}, restoreErrs...)...))
		return
	}

	for _, b := range backups {
		if err := b.Discard(); err != nil {
			util.Log.Warnf("%v", err)
		}
	}
	outcome.fail(StateRolledBack, cause)
}

// updateDependencies registers every installed plugin with the dependencies project and
// lets composer resolve their shared dependencies.
func (m *Manager) updateDependencies(ctx context.Context) error {
	deps, err := EnsureManifest(m.opts.DependenciesDir, DependenciesPackageName)
	if err != nil {
		return err
	}
	plugins, err := Discover(m.opts.PluginsDir)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		deps.SetRepository(p.Name, Repository{Type: "path", URL: p.Path})
		deps.Require(p.Name, "*")
	}
	if err := deps.Save(); err != nil {
		return err
	}
	return m.composer(ctx, "Error updating terminus-dependencies.", "update", "-d", m.opts.DependenciesDir, "--with-dependencies")
}

func (m *Manager) deregisterRepository(p *Plugin) error {
	deps, err := LoadManifest(m.opts.DependenciesDir)
	if err != nil {
		return err
	}
	// composer normally drops the require itself; a leftover one would
	// point at the repository being removed.
	droppedRequire := deps.RemoveRequire(p.Name)
	if !deps.RemoveRepository(p.Name, p.Path) && !droppedRequire {
		util.Log.Debugf("No repository registered for %s in %s", p.Name, deps.Path())
		return nil
	}
	return deps.Save()
}

func (m *Manager) composer(ctx context.Context, failure string, args ...string) error {
	res, err := m.runner.Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("%s %w", failure, err)
	}
	if res.ExitCode != 0 {
		util.Log.Debugf("composer output: %s", strings.TrimSpace(res.Output))
		return &SubprocessError{Message: failure, Args: args, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}

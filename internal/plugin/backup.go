package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/otiai10/copy"
	"terminus/internal/util"
)

// Backup is a full copy of a directory taken before it is mutated.
type Backup struct {
	Label  string
	Source string
	Path   string
	// resolved is Source with symlinks evaluated. Copies are taken from and restored into
	// it so a linked directory keeps its link.
	resolved string
	// sourceMissing records that Source did not exist when the backup was taken, so
	// restoring means removing whatever was created since.
	sourceMissing bool
}

func copyOptions() copy.Options {
	return copy.Options{
		OnSymlink: func(src string) copy.SymlinkAction {
			return copy.Shallow
		},
		PermissionControl: copy.PerservePermission,
		PreserveTimes:     true,
		OnDirExists: func(src, dst string) copy.DirExistsAction {
			return copy.Merge
		},
	}
}

// BackupDir copies src into a fresh directory under root.
func BackupDir(src, root, label string) (*Backup, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup root %s: %w", root, err)
	}
	path, err := os.MkdirTemp(root, fmt.Sprintf("%s-%s-", label, time.Now().Format("20060102-150405")))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backup directory: %w", label, err)
	}

	b := &Backup{Label: label, Source: src, Path: path, resolved: src}
	if !pathExists(src) {
		util.Log.Debugf("Nothing to back up for %s: %s does not exist", label, src)
		b.sourceMissing = true
		return b, nil
	}
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("failed to resolve %s directory %s: %w", label, src, err)
	}
	b.resolved = resolved
	if resolved != src {
		util.Log.Debugf("%s directory %s resolves to %s", label, src, resolved)
	}

	if err := copy.Copy(resolved, path, copyOptions()); err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("failed to back up %s directory %s: %w", label, src, err)
	}
	util.Log.Debugf("Backed up %s directory %s to %s", label, src, path)
	return b, nil
}

// Restore replaces the contents of Source with the backed up copy. When Source is a
// symlink, the directory it points to is restored and the link is left alone.
func (b *Backup) Restore() error {
	util.Log.Infof("Restoring %s directory %s from backup...", b.Label, b.Source)
	if b.sourceMissing {
		if err := os.RemoveAll(b.Source); err != nil {
			return fmt.Errorf("failed to remove %s directory %s created since backup: %w", b.Label, b.Source, err)
		}
		return nil
	}

	if err := clearDir(b.resolved); err != nil {
		return fmt.Errorf("failed to clear %s directory %s before restore: %w", b.Label, b.resolved, err)
	}
	if err := copy.Copy(b.Path, b.resolved, copyOptions()); err != nil {
		return fmt.Errorf("failed to restore %s directory %s from %s: %w", b.Label, b.Source, b.Path, err)
	}
	return nil
}

// clearDir removes everything inside dir, creating dir if it vanished.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Discard deletes the backup copy.
func (b *Backup) Discard() error {
	if err := os.RemoveAll(b.Path); err != nil {
		return fmt.Errorf("failed to remove %s backup %s: %w", b.Label, b.Path, err)
	}
	util.Log.Debugf("Removed %s backup %s", b.Label, b.Path)
	return nil
}

package materialize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// copySkipDirs are never copied into a run workspace.
var copySkipDirs = map[string]struct{}{
	"build":   {},
	".gradle": {},
	".git":    {},
}

// freshWorkspace wipes the run directory and copies the template's app/ tree
// into it. Every run starts from a pristine copy; nothing is mutated across
// runs.
func freshWorkspace(templateDir, runDir string) error {
	src := filepath.Join(templateDir, "app")
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTemplateMissing, src)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("materialize: wipe workspace: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("materialize: create workspace: %w", err)
	}
	return copyTree(src, filepath.Join(runDir, "app"))
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := copySkipDirs[d.Name()]; skip && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

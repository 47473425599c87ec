package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/flowforge/pkg/compiler"
)

// BundleWriter persists generated artifact trees to disk, one
// directory per workflow ID under <base>/bundles/.
type BundleWriter struct {
	baseDir string
}

// NewBundleWriter creates a writer rooted at the given base directory.
func NewBundleWriter(baseDir string) (*BundleWriter, error) {
	bundlesDir := filepath.Join(baseDir, "bundles")
	if err := os.MkdirAll(bundlesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundles directory: %w", err)
	}

	return &BundleWriter{baseDir: bundlesDir}, nil
}

// Write persists every file in the tree under the workflow's bundle
// directory and returns that directory. Relative paths inside the tree
// are validated so a crafted path can never escape the bundle root.
// Each file is written atomically via a temp file and rename.
func (w *BundleWriter) Write(tree *compiler.ArtifactTree) (string, error) {
	if tree == nil || tree.WorkflowID == "" {
		return "", fmt.Errorf("cannot write bundle without a workflow ID")
	}

	bundleDir := filepath.Join(w.baseDir, tree.WorkflowID)
	if err := os.MkdirAll(bundleDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bundle directory: %w", err)
	}

	for _, relPath := range tree.Paths() {
		if !filepath.IsLocal(relPath) {
			return "", fmt.Errorf("artifact path escapes bundle directory: %s", relPath)
		}

		fullPath := filepath.Join(bundleDir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create artifact directory: %w", err)
		}

		if err := writeFileAtomic(fullPath, []byte(tree.Files[relPath])); err != nil {
			return "", fmt.Errorf("failed to write artifact %s: %w", relPath, err)
		}
	}

	if len(tree.Notes) > 0 {
		notesPath := filepath.Join(bundleDir, "NOTES.txt")
		content := strings.Join(tree.Notes, "\n") + "\n"
		if err := writeFileAtomic(notesPath, []byte(content)); err != nil {
			return "", fmt.Errorf("failed to write bundle notes: %w", err)
		}
	}

	return bundleDir, nil
}

// BundleDir returns where a workflow's bundle would be written. It does
// not check existence.
func (w *BundleWriter) BundleDir(workflowID string) string {
	return filepath.Join(w.baseDir, workflowID)
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

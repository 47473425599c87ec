package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/flowforge/pkg/workflow"
)

// FilesystemWorkflowRepository stores workflow graphs as YAML files in
// a base directory, one file per workflow ID.
type FilesystemWorkflowRepository struct {
	baseDir string
}

// NewFilesystemWorkflowRepository creates a repository under the given
// base directory, ensuring the workflows subdirectory exists.
func NewFilesystemWorkflowRepository(baseDir string) (*FilesystemWorkflowRepository, error) {
	workflowsDir := filepath.Join(baseDir, "workflows")
	if err := os.MkdirAll(workflowsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workflows directory: %w", err)
	}

	return &FilesystemWorkflowRepository{baseDir: workflowsDir}, nil
}

// Save persists a workflow as YAML. The write is atomic: content goes
// to a temp file first and is renamed into place.
func (r *FilesystemWorkflowRepository) Save(wf *workflow.Workflow) error {
	if wf == nil {
		return fmt.Errorf("cannot save nil workflow")
	}
	if wf.ID == "" {
		return fmt.Errorf("workflow must have an ID")
	}

	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow to YAML: %w", err)
	}

	filePath := r.workflowPath(wf.ID)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save workflow file: %w", err)
	}

	return nil
}

// Load retrieves a workflow by its ID.
func (r *FilesystemWorkflowRepository) Load(id string) (*workflow.Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("workflow ID cannot be empty")
	}

	filePath := r.workflowPath(id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
		}
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	wf, err := workflow.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	return wf, nil
}

// Delete removes a workflow file.
func (r *FilesystemWorkflowRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("workflow ID cannot be empty")
	}

	if err := os.Remove(r.workflowPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
		}
		return fmt.Errorf("failed to delete workflow file: %w", err)
	}

	return nil
}

// List returns every workflow in the repository. Files that fail to
// parse are skipped rather than failing the whole listing.
func (r *FilesystemWorkflowRepository) List() ([]*workflow.Workflow, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		wf, err := r.Load(strings.TrimSuffix(entry.Name(), ".yaml"))
		if err != nil {
			continue
		}
		workflows = append(workflows, wf)
	}

	return workflows, nil
}

func (r *FilesystemWorkflowRepository) workflowPath(id string) string {
	return filepath.Join(r.baseDir, id+".yaml")
}

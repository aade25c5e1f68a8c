// Package file provides file-based persistence for pipelines, records
// and jobs. Each entity is one JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomhq/loom/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	pipelineRepo *PipelineRepository
	recordRepo   *RecordRepository
	jobRepo      *JobRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory (a leading file:// scheme is stripped).
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		pipelineRepo: &PipelineRepository{root: cleanRoot},
		recordRepo:   &RecordRepository{root: cleanRoot},
		jobRepo:      &JobRepository{root: cleanRoot},
	}
}

func (fp *Persistence) Pipelines() persistence.PipelineRepository {
	return fp.pipelineRepo
}

func (fp *Persistence) Records() persistence.RecordRepository {
	return fp.recordRepo
}

func (fp *Persistence) Jobs() persistence.JobRepository {
	return fp.jobRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// writeEntity marshals an entity to <root>/<kind>/<id>.json.
func writeEntity(root, kind, id string, entity any) error {
	dir := filepath.Join(root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// readEntity unmarshals <root>/<kind>/<id>.json into entity. Returns
// os.ErrNotExist when the file is missing.
func readEntity(root, kind, id string, entity any) error {
	data, err := os.ReadFile(filepath.Join(root, kind, id+".json"))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// listIDs returns the entity ids stored under <root>/<kind>.
func listIDs(root, kind string) ([]string, error) {
	dir := os.DirFS(filepath.Join(root, kind))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

func removeEntity(root, kind, id string) error {
	return os.Remove(filepath.Join(root, kind, id+".json"))
}

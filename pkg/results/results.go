// Package results resolves the output metadata of finished jobs.
//
// Batch jobs write a metadata document next to their result assets; the
// tracker merges that document into the primary registry when the job
// reaches a terminal status.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetadataFileName is the per-job result metadata document.
const MetadataFileName = "job_metadata.json"

// FileResolver reads result metadata from a per-job directory under a
// shared output root:
//
//	<root>/<job_id>/job_metadata.json
type FileResolver struct {
	root string
}

// NewFileResolver creates a resolver rooted at root.
func NewFileResolver(root string) (*FileResolver, error) {
	if root == "" {
		return nil, fmt.Errorf("output root is required")
	}
	return &FileResolver{root: root}, nil
}

// GetResultsMetadata returns the job's result metadata document. A missing
// document yields an empty map: a job can finish without writing metadata
// (e.g. when it errored before producing results).
func (r *FileResolver) GetResultsMetadata(ctx context.Context, jobID, userID string) (map[string]any, error) {
	path := filepath.Join(r.root, jobID, MetadataFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read results metadata: %w", err)
	}

	var metadata map[string]any
	if err := json.Unmarshal(b, &metadata); err != nil {
		return nil, fmt.Errorf("parse results metadata %s: %w", path, err)
	}
	return metadata, nil
}

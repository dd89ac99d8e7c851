package results

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGetResultsMetadata(t *testing.T) {
	root := t.TempDir()
	jobDir := filepath.Join(root, "job-1")
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		t.Fatal(err)
	}
	doc := `{
		"area": {"value": 42.0, "unit": "square meter"},
		"unique_process_ids": ["load_collection", "reduce_dimension"],
		"usage": {"sentinelhub": {"value": 2.5, "unit": "sentinelhub_processing_unit"}}
	}`
	if err := os.WriteFile(filepath.Join(jobDir, MetadataFileName), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewFileResolver(root)
	if err != nil {
		t.Fatalf("NewFileResolver() error: %v", err)
	}

	meta, err := r.GetResultsMetadata(context.Background(), "job-1", "alice")
	if err != nil {
		t.Fatalf("GetResultsMetadata() error: %v", err)
	}
	if _, ok := meta["unique_process_ids"]; !ok {
		t.Error("unique_process_ids missing from metadata")
	}
	area, _ := meta["area"].(map[string]any)
	if area["value"] != 42.0 {
		t.Errorf("area value = %v", area["value"])
	}
}

func TestGetResultsMetadata_MissingDocument(t *testing.T) {
	r, err := NewFileResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileResolver() error: %v", err)
	}

	meta, err := r.GetResultsMetadata(context.Background(), "job-without-results", "alice")
	if err != nil {
		t.Fatalf("missing document must not fail: %v", err)
	}
	if len(meta) != 0 {
		t.Errorf("expected empty metadata, got %v", meta)
	}
}

func TestGetResultsMetadata_MalformedDocument(t *testing.T) {
	root := t.TempDir()
	jobDir := filepath.Join(root, "job-1")
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, MetadataFileName), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewFileResolver(root)
	if err != nil {
		t.Fatalf("NewFileResolver() error: %v", err)
	}
	if _, err := r.GetResultsMetadata(context.Background(), "job-1", "alice"); err == nil {
		t.Fatal("expected error for malformed metadata")
	}
}

package registry

import (
	"reflect"
	"testing"
)

func TestJobRecord_Valid(t *testing.T) {
	tests := []struct {
		name string
		rec  JobRecord
		want bool
	}{
		{"complete", JobRecord{JobID: "j-1", UserID: "alice"}, true},
		{"missing job id", JobRecord{UserID: "alice"}, false},
		{"missing user id", JobRecord{JobID: "j-1"}, false},
		{"empty", JobRecord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDependencySources_Dedupes(t *testing.T) {
	rec := JobRecord{DependencySources: []string{"s3://b/a", "s3://b/c", "s3://b/a"}}
	got := DependencySources(rec)
	want := []string{"s3://b/a", "s3://b/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DependencySources() = %v, want %v", got, want)
	}

	if got := DependencySources(JobRecord{}); got != nil {
		t.Fatalf("expected nil for empty sources, got %v", got)
	}
}

func TestDependencyUsage(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 0},
		{"1.25", 1.25},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := DependencyUsage(JobRecord{DependencyUsage: tt.raw}); got != tt.want {
			t.Errorf("DependencyUsage(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

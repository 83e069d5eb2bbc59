package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithBlankTarget(t *testing.T) {
	store, err := New(context.Background(), " ", AWS{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if store != nil {
		t.Errorf("Expected nil store for blank target, got %v", store)
	}
}

func TestNewWithInvalidS3Target(t *testing.T) {
	if _, err := New(context.Background(), "s3:///prefix", AWS{}); err == nil {
		t.Errorf("Expected error for S3 target without a bucket")
	}
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	store, err := New(context.Background(), dir, AWS{})
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	snapshot := "Email\tRole\nowner@example.org\tOWNER\n"

	file, err := store.Put(context.Background(), "list@example.org/2024-10-01T120000.tsv", strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("Unexpected error storing snapshot (%v)", err)
	}

	if expected := filepath.Join(dir, "list@example.org", "2024-10-01T120000.tsv"); file != expected {
		t.Errorf("Incorrect snapshot file - expected %v, got %v", expected, file)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("Error reading snapshot (%v)", err)
	}

	if string(b) != snapshot {
		t.Errorf("Incorrect snapshot\n   expected: %q\n   got:      %q", snapshot, string(b))
	}

	entries, _ := os.ReadDir(filepath.Dir(file))
	if len(entries) != 1 {
		t.Errorf("Expected temporary file to be removed, got %v entries", len(entries))
	}
}

func TestParseS3(t *testing.T) {
	tests := []struct {
		target string
		bucket string
		prefix string
	}{
		{"s3://snapshots", "snapshots", ""},
		{"s3://snapshots/", "snapshots", ""},
		{"s3://snapshots/groups/", "snapshots", "groups"},
		{"s3://snapshots/a/b", "snapshots", "a/b"},
	}

	for _, test := range tests {
		bucket, prefix := parseS3(test.target)
		if bucket != test.bucket || prefix != test.prefix {
			t.Errorf("%v: expected %v,%v - got %v,%v", test.target, test.bucket, test.prefix, bucket, prefix)
		}
	}
}

func TestObjectKey(t *testing.T) {
	if key := objectKey("", "/list@example.org/x.tsv"); key != "list@example.org/x.tsv" {
		t.Errorf("Incorrect object key %v", key)
	}

	if key := objectKey("groups", "list@example.org/x.tsv"); key != "groups/list@example.org/x.tsv" {
		t.Errorf("Incorrect object key %v", key)
	}
}

package fs_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/catunlock/vecstore/pkg/fs"
)

func TestAtomicWriteFile_LeavesPriorContentIntact_WhenRenameFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()

	writer := fs.NewAtomicWriter(real)
	if err := writer.WriteWithDefaults(dir+"/final.txt", strings.NewReader("v1")); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	chaos := fs.NewChaos(real, 1, &fs.ChaosConfig{RenameFailRate: 1})

	failingWriter := fs.NewAtomicWriter(chaos)

	err := failingWriter.WriteWithDefaults(dir+"/final.txt", strings.NewReader("v2"))
	if err == nil {
		t.Fatalf("expected rename failure, got nil")
	}

	got, err := real.ReadFile(dir + "/final.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "v1" {
		t.Fatalf("content=%q, want %q (prior content must survive a failed rename)", string(got), "v1")
	}
}

func TestAtomicWriter_WriteJSON_RoundTrips_Value(t *testing.T) {
	t.Parallel()

	type record struct {
		Count int    `json:"count"`
		Name  string `json:"name"`
	}

	dir := t.TempDir()
	real := fs.NewReal()
	writer := fs.NewAtomicWriter(real)

	want := record{Count: 3, Name: "hnsw"}
	path := dir + "/record.json"

	if err := writer.WriteJSON(path, want, writer.DefaultOptions()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := real.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var got record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAtomicWriter_WriteJSON_LeavesPriorContentIntact_WhenRenameFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()
	path := dir + "/record.json"

	writer := fs.NewAtomicWriter(real)
	if err := writer.WriteJSON(path, map[string]int{"count": 1}, writer.DefaultOptions()); err != nil {
		t.Fatalf("seed WriteJSON: %v", err)
	}

	chaos := fs.NewChaos(real, 2, &fs.ChaosConfig{RenameFailRate: 1})
	failingWriter := fs.NewAtomicWriter(chaos)

	err := failingWriter.WriteJSON(path, map[string]int{"count": 2}, failingWriter.DefaultOptions())
	if err == nil {
		t.Fatalf("expected rename failure, got nil")
	}

	data, err := real.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got["count"] != 1 {
		t.Fatalf("count=%d, want 1 (prior content must survive a failed rename)", got["count"])
	}
}

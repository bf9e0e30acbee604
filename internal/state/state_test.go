package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// isolate points the package at a temp dir and restores it afterwards.
func isolate(t *testing.T) string {
	t.Helper()
	originalPath := path
	originalCurrent := current
	t.Cleanup(func() {
		path = originalPath
		current = originalCurrent
	})
	dir := filepath.Join(t.TempDir(), ".config", "chatview")
	if err := InitWithDir(dir); err != nil {
		t.Fatalf("InitWithDir() failed: %v", err)
	}
	return dir
}

func TestInit(t *testing.T) {
	isolate(t)

	if current == nil {
		t.Fatal("current state should be initialized")
	}
	if current.ShowTimestamps != nil {
		t.Error("timestamps preference should be unset")
	}
}

func TestLoad_NonExistent(t *testing.T) {
	isolate(t)
	path = filepath.Join(t.TempDir(), "nonexistent", "state.json")

	if err := Load(); err != nil {
		t.Fatalf("Load() for non-existent file should return nil, got %v", err)
	}
	if current == nil {
		t.Error("current should be initialized with defaults")
	}
}

func TestLoad_ExistingFile(t *testing.T) {
	dir := isolate(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data := []byte(`{"showTimestamps": true, "lastChannel": "forsen"}`)
	if err := os.WriteFile(filepath.Join(dir, "state.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !GetShowTimestamps(false) {
		t.Error("showTimestamps should be true")
	}
	if got := GetLastChannel(); got != "forsen" {
		t.Errorf("GetLastChannel() = %q, want forsen", got)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := isolate(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Load(); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestShowTimestamps_DefaultUntilSet(t *testing.T) {
	isolate(t)

	if GetShowTimestamps(false) {
		t.Error("unset preference should return the default")
	}
	if !GetShowTimestamps(true) {
		t.Error("unset preference should return the default")
	}

	if err := SetShowTimestamps(false); err != nil {
		t.Fatalf("SetShowTimestamps() failed: %v", err)
	}
	if GetShowTimestamps(true) {
		t.Error("saved false should override a true default")
	}
}

func TestSetters_Persist(t *testing.T) {
	dir := isolate(t)

	if err := SetShowTimestamps(true); err != nil {
		t.Fatal(err)
	}
	if err := SetLastChannel("xqc"); err != nil {
		t.Fatal(err)
	}
	if err := SetLastSource("file"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	var saved State
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ShowTimestamps == nil || !*saved.ShowTimestamps {
		t.Error("showTimestamps not saved")
	}
	if saved.LastChannel != "xqc" || saved.LastSource != "file" {
		t.Errorf("got %+v", saved)
	}

	if err := Load(); err != nil {
		t.Fatal(err)
	}
	if GetLastSource() != "file" {
		t.Errorf("GetLastSource() = %q after reload", GetLastSource())
	}
}

func TestGetters_NilState(t *testing.T) {
	isolate(t)
	current = nil

	if GetShowTimestamps(true) != true {
		t.Error("nil state should return the default")
	}
	if GetLastChannel() != "" || GetLastSource() != "" {
		t.Error("nil state should return empty strings")
	}
	if err := Save(); err != nil {
		t.Errorf("Save() with nil state should be a no-op, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	isolate(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = SetShowTimestamps(i%2 == 0)
		}()
		go func() {
			defer wg.Done()
			_ = GetShowTimestamps(false)
			_ = GetLastChannel()
		}()
	}
	wg.Wait()
}

package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ayanero/mimik/internal/config"
)

func TestLoadMapping_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	mf, err := config.LoadMapping(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mf.Actions == nil || len(mf.Actions) != 0 {
		t.Errorf("expected empty non-nil actions map, got %#v", mf.Actions)
	}
}

func TestMappingRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "actions.yaml")
	want := &config.MappingFile{
		Actions: map[string]config.ActionMapping{
			"smile.exp3.json": {
				DisplayName:     "Smile",
				Keywords:        []string{"hello", "hey there"},
				CooldownSeconds: 10,
			},
		},
		Emotions: map[string]string{"happiness": "smile.exp3.json"},
	}

	if err := config.SaveMapping(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := config.LoadMapping(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestSaveMapping_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "actions.yaml")

	mf := &config.MappingFile{Actions: map[string]config.ActionMapping{}}
	if err := config.SaveMapping(path, mf); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "actions.yaml" {
		t.Errorf("expected only actions.yaml in %s, found %d entries", dir, len(entries))
	}
}

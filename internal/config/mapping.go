package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MappingFile is the persisted keyword/emotion mapping. Actions are keyed by
// the remote action's source key (the file or resource name the control
// endpoint reports), which stays stable across reconnects even when hotkey
// ids are regenerated.
type MappingFile struct {
	// Actions maps source key to its local trigger configuration.
	Actions map[string]ActionMapping `yaml:"actions"`

	// Emotions maps a detected emotion label (e.g., "happiness") to the
	// source key of the action it should trigger.
	Emotions map[string]string `yaml:"emotions,omitempty"`
}

// ActionMapping is the user-editable trigger configuration for one action.
type ActionMapping struct {
	// DisplayName mirrors the remote action's display name. It is also
	// matched as an implicit keyword.
	DisplayName string `yaml:"display_name"`

	// Keywords trigger the action when any of them occurs as a substring of
	// a transcript. Matching is case-insensitive.
	Keywords []string `yaml:"keywords"`

	// CooldownSeconds is the anti-spam window armed after two consecutive
	// hits on this action.
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// LoadMapping reads the mapping file at path. A missing file is not an
// error: it returns an empty mapping, which the synchronizer will populate
// and persist on its first pass.
func LoadMapping(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &MappingFile{Actions: map[string]ActionMapping{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read mapping %q: %w", path, err)
	}

	mf := &MappingFile{}
	if err := yaml.Unmarshal(data, mf); err != nil {
		return nil, fmt.Errorf("config: decode mapping %q: %w", path, err)
	}
	if mf.Actions == nil {
		mf.Actions = map[string]ActionMapping{}
	}
	return mf, nil
}

// SaveMapping writes mf to path atomically (temp file + rename) so a crash
// mid-write never leaves a truncated mapping behind.
func SaveMapping(path string, mf *MappingFile) error {
	data, err := yaml.Marshal(mf)
	if err != nil {
		return fmt.Errorf("config: encode mapping: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mimik-mapping-*")
	if err != nil {
		return fmt.Errorf("config: create temp mapping: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: write mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: close mapping: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: replace mapping %q: %w", path, err)
	}
	return nil
}

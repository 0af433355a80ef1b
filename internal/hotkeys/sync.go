// Package hotkeys reconciles the actions discoverable on the control
// endpoint with the locally persisted keyword/emotion mapping and builds the
// trigger table the intent engine consumes.
package hotkeys

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ayanero/mimik/internal/config"
	"github.com/ayanero/mimik/internal/intent"
)

// Action is one externally discoverable command.
type Action struct {
	// ID is the opaque identifier passed back when triggering.
	ID string

	// Name is the human-readable display name.
	Name string

	// SourceKey identifies the backing asset (e.g. an expression file name)
	// and keys the persisted mapping: it is stable across endpoint restarts
	// while ID may not be.
	SourceKey string

	// Type is the endpoint's action category.
	Type string
}

// Lister fetches the current remote action list.
type Lister interface {
	ListActions(ctx context.Context) ([]Action, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]Action, error)

func (f ListerFunc) ListActions(ctx context.Context) ([]Action, error) { return f(ctx) }

const (
	defaultActionType = "ToggleExpression"
	defaultCooldown   = 60 * time.Second

	// placeholderPrefix marks keywords synthesized for newly discovered
	// actions; users replace them through the mapping file.
	placeholderPrefix = "NEW_KEYWORD_"
)

// Synchronizer merges the remote action list into the persisted mapping and
// produces the resolved trigger table. Safe to re-run at any time; identical
// inputs produce an identical table and no file rewrite.
type Synchronizer struct {
	lister      Lister
	mappingPath string
	actionType  string
	cooldown    time.Duration
}

// SyncOption is a functional option for configuring a [Synchronizer].
type SyncOption func(*Synchronizer)

// WithActionType restricts synchronization to one remote action type.
// Default: "ToggleExpression". Empty keeps every type.
func WithActionType(t string) SyncOption {
	return func(s *Synchronizer) { s.actionType = t }
}

// WithDefaultCooldown sets the cooldown given to synthesized entries.
// Default: 60 s.
func WithDefaultCooldown(d time.Duration) SyncOption {
	return func(s *Synchronizer) { s.cooldown = d }
}

// NewSynchronizer creates a synchronizer persisting to mappingPath.
func NewSynchronizer(lister Lister, mappingPath string, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		lister:      lister,
		mappingPath: mappingPath,
		actionType:  defaultActionType,
		cooldown:    defaultCooldown,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync fetches the remote action list, merges it into the persisted mapping,
// rewrites the mapping file when it drifted, and returns the trigger table.
//
// Merge rules, keyed by source key: entries present on both sides keep the
// local version (user edits survive); remote-only entries get a synthesized
// placeholder keyword and the default cooldown; local-only entries are stale
// and dropped.
func (s *Synchronizer) Sync(ctx context.Context) (*intent.Table, error) {
	actions, err := s.lister.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotkeys: list remote actions: %w", err)
	}
	if s.actionType != "" {
		filtered := actions[:0]
		for _, a := range actions {
			if a.Type == s.actionType {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}

	mapping, err := config.LoadMapping(s.mappingPath)
	if err != nil {
		return nil, fmt.Errorf("hotkeys: load mapping: %w", err)
	}

	remote := make(map[string]Action, len(actions))
	for _, a := range actions {
		remote[a.SourceKey] = a
	}

	changed := false

	for key, a := range remote {
		if _, ok := mapping.Actions[key]; ok {
			continue
		}
		mapping.Actions[key] = config.ActionMapping{
			DisplayName:     a.Name,
			Keywords:        []string{placeholderKeyword(a.Name)},
			CooldownSeconds: int(s.cooldown / time.Second),
		}
		changed = true
		slog.Info("discovered new action", "source_key", key, "display_name", a.Name)
	}

	for key := range mapping.Actions {
		if _, ok := remote[key]; !ok {
			delete(mapping.Actions, key)
			changed = true
			slog.Info("dropping stale mapping entry", "source_key", key)
		}
	}

	if changed {
		if err := config.SaveMapping(s.mappingPath, mapping); err != nil {
			return nil, fmt.Errorf("hotkeys: persist mapping: %w", err)
		}
	}

	return buildTable(mapping, remote), nil
}

// buildTable flattens the merged mapping into the runtime trigger table:
// every keyword and the bare display name map to the action, lowercased;
// emotion labels resolve through their source key.
func buildTable(mapping *config.MappingFile, remote map[string]Action) *intent.Table {
	table := intent.NewTable()

	for key, m := range mapping.Actions {
		action, ok := remote[key]
		if !ok {
			continue
		}
		entry := intent.Entry{
			ActionID: action.ID,
			Cooldown: time.Duration(m.CooldownSeconds) * time.Second,
		}
		for _, kw := range m.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				table.Keywords[kw] = entry
			}
		}
		if name := strings.ToLower(strings.TrimSpace(m.DisplayName)); name != "" {
			table.Keywords[name] = entry
		}
	}

	for label, key := range mapping.Emotions {
		action, ok := remote[key]
		if !ok {
			slog.Warn("emotion maps to an unknown source key", "label", label, "source_key", key)
			continue
		}
		cooldown := defaultCooldown
		if m, ok := mapping.Actions[key]; ok {
			cooldown = time.Duration(m.CooldownSeconds) * time.Second
		}
		table.Emotions[label] = intent.Entry{ActionID: action.ID, Cooldown: cooldown}
	}

	return table
}

// placeholderKeyword derives the synthesized keyword for a newly discovered
// action from its display name.
func placeholderKeyword(displayName string) string {
	return placeholderPrefix + strings.ReplaceAll(strings.TrimSpace(displayName), " ", "_")
}

// Package hook lets other subsystems observe quest and insurance events
// without the game services knowing about them.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data any) (any, error)

// Event is implemented by every payload the game services trigger.
type Event interface {
	Profile() string
}

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// Center manages event hook registrations. A nil *Center is valid and
// triggers nothing.
type Center struct {
	mu     sync.RWMutex
	hooks  map[string][]*hookEntry
	logger *zap.Logger
}

// NewCenter creates a new Center.
func NewCenter(logger *zap.Logger) *Center {
	return &Center{hooks: make(map[string][]*hookEntry), logger: logger}
}

// Register adds a HookFn for the given event with the given priority (lower runs first).
// name is used for Unregister.
func (hc *Center) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &hookEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (hc *Center) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *Center) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

func without(entries []*hookEntry, name string) []*hookEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops. Other handler errors
// are logged and the chain continues.
func (hc *Center) Trigger(ctx context.Context, event string, data any) (any, error) {
	if hc == nil {
		return data, nil
	}
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			if hc.logger != nil {
				hc.logger.Warn("hook failed", zap.String("event", event), zap.String("hook", e.name), zap.Error(err))
			}
			continue
		}
		data = out
	}
	return data, nil
}

// Events triggered by the game services after the profile change is saved.
const (
	QuestAccepted     = "quest.accepted"
	QuestCompleted    = "quest.completed"
	QuestFailed       = "quest.failed"
	InsuranceReturned = "insurance.returned"
)

// QuestEvent is the payload of the quest events.
type QuestEvent struct {
	ProfileID string `json:"profile_id"`
	QuestID   string `json:"quest_id"`
	Status    string `json:"status"`
	NewQuests int    `json:"new_quests"`
}

func (e QuestEvent) Profile() string { return e.ProfileID }

// InsuranceEvent is the payload of InsuranceReturned, one per package.
type InsuranceEvent struct {
	ProfileID  string `json:"profile_id"`
	TraderID   string `json:"trader_id"`
	Location   string `json:"location"`
	TemplateID string `json:"template_id"`
	Returned   int    `json:"returned"`
	Deleted    int    `json:"deleted"`
	Mailed     bool   `json:"mailed"`
}

func (e InsuranceEvent) Profile() string { return e.ProfileID }

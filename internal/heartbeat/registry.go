// Package heartbeat tracks the liveness of long-running components such as
// the gateway connector and the command resync schedule.
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateWaiting  = "waiting"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallIdle    = "idle"
	OverallUnknown = "unknown"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Waiting(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	LastBeatAt time.Time `json:"last_beat_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Overall     string            `json:"overall"`
	Components  []ComponentStatus `json:"components"`
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]ComponentStatus{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(component, message string) {
	r.update(component, StateStarting, message, nil, false)
}

func (r *Registry) Beat(component, message string) {
	r.update(component, StateHealthy, message, nil, true)
}

// Waiting marks a component idle between scheduled runs. Waiting components
// are never reported stale.
func (r *Registry) Waiting(component, message string) {
	r.update(component, StateWaiting, message, nil, true)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.update(component, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(component, message string) {
	r.update(component, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(component, message string) {
	r.update(component, StateStopped, message, nil, false)
}

func (r *Registry) update(component, state, message string, err error, beat bool) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.components[name]
	status.Name = name
	status.State = state
	status.Message = strings.TrimSpace(message)
	status.Error = ""
	if err != nil {
		status.Error = strings.TrimSpace(err.Error())
	}
	status.UpdatedAt = now
	if beat || status.LastBeatAt.IsZero() {
		status.LastBeatAt = now
	}
	r.components[name] = status
}

// Snapshot reports every component, sorted by name. A running component that
// has not beaten within staleAfter is reported stale; zero disables the check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	results := make([]ComponentStatus, 0, len(r.components))
	for _, status := range r.components {
		if staleAfter > 0 && isRunning(status.State) && now.Sub(status.LastBeatAt) > staleAfter {
			status.State = StateStale
		}
		results = append(results, status)
	}
	r.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return Snapshot{
		GeneratedAt: now,
		Overall:     overallState(results),
		Components:  results,
	}
}

func isRunning(state string) bool {
	return state == StateHealthy || state == StateStarting
}

func overallState(items []ComponentStatus) string {
	if len(items) == 0 {
		return OverallUnknown
	}
	overall := OverallIdle
	for _, item := range items {
		switch item.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			overall = StateStarting
		case StateHealthy, StateWaiting:
			if overall != StateStarting {
				overall = StateHealthy
			}
		}
	}
	return overall
}

package heartbeat

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotMarksStaleComponent(t *testing.T) {
	registry := NewRegistry()
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return current }
	registry.Beat("connector:discord", "gateway ready")

	current = current.Add(3 * time.Minute)
	snapshot := registry.Snapshot(time.Minute)
	if snapshot.Overall != StateDegraded {
		t.Fatalf("expected degraded overall state, got %s", snapshot.Overall)
	}
	if len(snapshot.Components) != 1 || snapshot.Components[0].State != StateStale {
		t.Fatalf("expected one stale component, got %+v", snapshot.Components)
	}

	registry.Beat("connector:discord", "heartbeat")
	if state := registry.Snapshot(time.Minute).Components[0].State; state != StateHealthy {
		t.Fatalf("beat should clear staleness, got %s", state)
	}
}

func TestWaitingComponentNeverGoesStale(t *testing.T) {
	registry := NewRegistry()
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return current }
	registry.Beat("api", "serving")
	registry.Waiting("resync", "next run in 6h")

	current = current.Add(3 * time.Minute)
	registry.Beat("api", "serving")
	snapshot := registry.Snapshot(2 * time.Minute)
	if snapshot.Overall != StateHealthy {
		t.Fatalf("expected healthy overall state, got %s (%+v)", snapshot.Overall, snapshot.Components)
	}
	for _, component := range snapshot.Components {
		if component.Name == "resync" && component.State != StateWaiting {
			t.Fatalf("expected waiting resync, got %s", component.State)
		}
	}
}

func TestSnapshotOverallStates(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*Registry)
		want  string
	}{
		{name: "empty", setup: func(*Registry) {}, want: OverallUnknown},
		{name: "disabled only", setup: func(r *Registry) {
			r.Disabled("connector:discord", "token missing")
			r.Disabled("resync", "no schedule")
		}, want: OverallIdle},
		{name: "starting wins over healthy", setup: func(r *Registry) {
			r.Beat("api", "serving")
			r.Starting("connector:discord", "connecting")
		}, want: StateStarting},
		{name: "waiting counts as healthy", setup: func(r *Registry) {
			r.Waiting("resync", "next run")
		}, want: StateHealthy},
		{name: "healthy", setup: func(r *Registry) {
			r.Beat("api", "serving")
			r.Stopped("resync", "stopped")
		}, want: StateHealthy},
		{name: "degraded", setup: func(r *Registry) {
			r.Beat("api", "serving")
			r.Degrade("connector:discord", "session ended", errors.New("read: eof"))
		}, want: StateDegraded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registry := NewRegistry()
			tc.setup(registry)
			if got := registry.Snapshot(0).Overall; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDegradeRecordsError(t *testing.T) {
	registry := NewRegistry()
	registry.Degrade("Connector:Discord", "session ended", errors.New("read: eof"))
	snapshot := registry.Snapshot(0)
	if len(snapshot.Components) != 1 {
		t.Fatalf("expected one component, got %d", len(snapshot.Components))
	}
	status := snapshot.Components[0]
	if status.Name != "connector:discord" || status.Error != "read: eof" {
		t.Fatalf("unexpected status %+v", status)
	}
	registry.Beat("connector:discord", "ready")
	if registry.Snapshot(0).Components[0].Error != "" {
		t.Fatal("beat should clear the last error")
	}
}

package testsupport

import (
	"context"
	"testing"

	"duet/internal/config"
	"duet/internal/project"
)

// MustOpenStore opens a project.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *project.Store {
	t.Helper()

	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject inserts a DRAFT project about topic with the default characters.
func NewProject(t testing.TB, store *project.Store, topic string) *project.Project {
	t.Helper()

	p, err := store.Create(context.Background(), &project.Project{
		Topic:                 topic,
		Style:                 "educational",
		QuestionerRef:         "thabo",
		ExplainerRef:          "lerato",
		BackgroundRef:         "classroom.png",
		TargetDurationSeconds: 45,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return p
}

// Advance persists p, walking the stored status to p.Status through
// permitted transitions. Intermediate steps carry no scenes.
func Advance(t testing.TB, store *project.Store, p *project.Project) {
	t.Helper()

	ctx := context.Background()
	stored, err := store.Get(ctx, p.ID)
	if err != nil || stored == nil {
		t.Fatalf("store.Get(%d) = %v, %v", p.ID, stored, err)
	}
	path := statusPath(stored.Status, p.Status)
	if path == nil {
		t.Fatalf("no transition path from %s to %s", stored.Status, p.Status)
	}
	for _, status := range path[:len(path)-1] {
		step := *stored
		step.Status = status
		step.Scenes = nil
		if status == project.StatusFailed {
			step.SetFailed("test", "advancing")
		}
		if err := store.Update(ctx, &step); err != nil {
			t.Fatalf("store.Update(%s): %v", status, err)
		}
	}
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("store.Update(%s): %v", p.Status, err)
	}
}

// statusPath returns the shortest run of statuses after from that ends in to.
func statusPath(from, to project.Status) []project.Status {
	if from == to {
		return []project.Status{to}
	}
	prev := map[project.Status]project.Status{from: from}
	queue := []project.Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range project.AllStatuses() {
			if _, seen := prev[next]; seen || !project.CanTransition(cur, next) {
				continue
			}
			prev[next] = cur
			if next != to {
				queue = append(queue, next)
				continue
			}
			var path []project.Status
			for s := to; s != from; s = prev[s] {
				path = append([]project.Status{s}, path...)
			}
			return path
		}
	}
	return nil
}

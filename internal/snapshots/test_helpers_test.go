package snapshots

import (
	"sync"

	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

func fixtureDocument() schedule.Document {
	return schedule.Document{Meta: fixture.Meta(), Games: fixture.Games()}
}

func simpleSnapshot(revision uint64) Snapshot {
	return Snapshot{Revision: revision, Document: fixtureDocument()}
}

type fakeSource struct {
	mu   sync.Mutex
	snap store.Snapshot
}

func (f *fakeSource) Snapshot() store.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(revision uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = store.Snapshot{
		Schedule: schedule.New(fixture.Meta(), fixture.Games()),
		Revision: revision,
	}
}

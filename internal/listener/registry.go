package listener

import (
	"sort"
	"sync"
	"time"

	"github.com/hansrobothans/logfan"
)

// producerTable tracks which producers are currently connected, keyed by
// the instance ID from their hello frame.
type producerTable struct {
	mu   sync.RWMutex
	byID map[string]logfan.ProducerInfo
}

func newProducerTable() *producerTable {
	return &producerTable{byID: make(map[string]logfan.ProducerInfo)}
}

// add registers a producer. Re-announcing an existing ID keeps the
// original start time so reconnects do not look like fresh producers.
func (t *producerTable) add(info logfan.ProducerInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.byID[info.ID]; ok && !prev.StartedAt.IsZero() {
		info.StartedAt = prev.StartedAt
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	t.byID[info.ID] = info
}

func (t *producerTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *producerTable) list() []logfan.ProducerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]logfan.ProducerInfo, 0, len(t.byID))
	for _, info := range t.byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

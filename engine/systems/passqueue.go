package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

type passEntry struct {
	pass  Pass
	order metadata.RenderPassEvent
}

// PassQueue collects the passes of one camera's frame. It is append-only until
// Clear, and sealed once sorting starts.
type PassQueue struct {
	entries []passEntry
	sealed  bool
	dropped int
}

func NewPassQueue(capacity int) *PassQueue {
	return &PassQueue{
		entries: make([]passEntry, 0, capacity),
	}
}

// Enqueue appends p. Nil passes are dropped and counted, not reported as errors.
func (pq *PassQueue) Enqueue(p Pass) error {
	if pq.sealed {
		return core.ErrPassQueueSealed
	}
	if isNilPass(p) {
		pq.dropped++
		return nil
	}
	pq.entries = append(pq.entries, passEntry{
		pass:  p,
		order: p.ResolveAttachments().Order,
	})
	return nil
}

// EnqueueAll appends every non-nil pass contributed by source.
func (pq *PassQueue) EnqueueAll(source string, passes []Pass) error {
	for _, p := range passes {
		if isNilPass(p) {
			core.LogWarn("feature '%s' returned a nil pass, dropping it", source)
		}
		if err := pq.Enqueue(p); err != nil {
			return fmt.Errorf("enqueue passes from '%s': %w", source, err)
		}
	}
	return nil
}

func (pq *PassQueue) Seal() {
	pq.sealed = true
}

func (pq *PassQueue) IsSealed() bool {
	return pq.sealed
}

// Sort orders the queue by ascending order, keeping the enqueue order of equal keys.
// Insertion sort: a frame holds a few dozen passes and the input is often nearly sorted.
func (pq *PassQueue) Sort() {
	for i := 1; i < len(pq.entries); i++ {
		current := pq.entries[i]
		j := i - 1
		for j >= 0 && pq.entries[j].order > current.order {
			pq.entries[j+1] = pq.entries[j]
			j--
		}
		pq.entries[j+1] = current
	}
}

func (pq *PassQueue) Len() int {
	return len(pq.entries)
}

func (pq *PassQueue) At(i int) Pass {
	return pq.entries[i].pass
}

func (pq *PassQueue) Order(i int) metadata.RenderPassEvent {
	return pq.entries[i].order
}

// Dropped returns how many nil entries were filtered since the last Clear.
func (pq *PassQueue) Dropped() int {
	return pq.dropped
}

// Clear empties and unseals the queue, keeping its backing storage.
func (pq *PassQueue) Clear() {
	for i := range pq.entries {
		pq.entries[i] = passEntry{}
	}
	pq.entries = pq.entries[:0]
	pq.sealed = false
	pq.dropped = 0
}

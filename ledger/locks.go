package ledger

import (
	"hash/fnv"
	"sync"

	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// KEY LOCKS - Striped per-(employee, work-day) serialization
// =============================================================================

// keyLocks serializes mutations per (employee, work-day) key without a
// global lock: unrelated keys proceed in parallel, colliding keys share
// a stripe. 64 stripes is plenty for a single-organization roster.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (k *keyLocks) lock(employee registry.EmployeeID, day workday.Day) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(employee))
	h.Write([]byte{0})
	h.Write([]byte(day.String()))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m
}

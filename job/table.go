package job

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/trigger"
)

// Table is the concurrent-safe collection of job records. It keeps a
// min-heap over next fire times so the timing loop can find the
// earliest deadline without scanning, and signals a wake channel
// whenever a mutation may have lowered that deadline.
//
// A single RWMutex guards both the map and the heap; every mutation is
// atomic with respect to readers, which only ever see snapshot copies.
type Table struct {
	mu         sync.RWMutex
	records    map[string]*Record
	byDeadline deadlineHeap
	wake       chan struct{}
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		records: make(map[string]*Record),
		wake:    make(chan struct{}, 1),
	}
}

// Wake returns the channel signaled when a mutation may have produced
// an earlier minimum deadline than the one the timing loop sleeps on.
func (t *Table) Wake() <-chan struct{} { return t.wake }

// Insert registers a new record built from the definition, computing
// its first fire time from now. Returns a snapshot of the stored record.
func (t *Table) Insert(def *Definition, now time.Time) (Record, error) {
	if def.Trigger == nil {
		return Record{}, fmt.Errorf("job %q: nil trigger", def.Name)
	}
	if def.Handler == nil {
		return Record{}, fmt.Errorf("job %q: nil handler", def.Name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	jobID := def.Opts.ID
	if jobID.IsNil() {
		jobID = id.NewJobID()
	}

	key := jobID.String()
	if _, exists := t.records[key]; exists {
		return Record{}, fmt.Errorf("%w: %s", ErrDuplicateID, key)
	}

	rec := &Record{
		ID:           jobID,
		Name:         def.Name,
		Trigger:      def.Trigger,
		Handler:      def.Handler,
		State:        StateScheduled,
		MaxInstances: def.Opts.MaxInstances,
		MisfireGrace: def.Opts.MisfireGrace,
		Timeout:      def.Opts.Timeout,
		MaxRetries:   def.Opts.MaxRetries,
		CreatedAt:    now,
		heapIndex:    -1,
	}
	if rec.MaxInstances < 1 {
		rec.MaxInstances = 1
	}

	if def.Opts.Paused {
		rec.State = StatePaused
	} else {
		next, ok := def.Trigger.Next(now)
		if !ok {
			return Record{}, fmt.Errorf("%w: %s", ErrExhaustedTrigger, def.Name)
		}
		rec.NextFire = &next
		heap.Push(&t.byDeadline, rec)
	}

	t.records[key] = rec
	t.signal()
	return t.snapshotLocked(rec), nil
}

// Remove unregisters a job. Future fires stop immediately; if instances
// are running, physical deletion is deferred until the last one
// completes, but the record is hidden from reads at once.
func (t *Table) Remove(jobID id.JobID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.visibleLocked(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	t.unindexLocked(rec)
	rec.NextFire = nil

	if rec.Running > 0 {
		rec.State = StateRemoved
	} else {
		delete(t.records, jobID.String())
	}

	t.signal()
	return nil
}

// Pause suspends future fires. Idempotent; an in-flight execution is
// not cancelled.
func (t *Table) Pause(jobID id.JobID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.visibleLocked(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if rec.State == StatePaused {
		return nil
	}

	rec.State = StatePaused
	rec.NextFire = nil
	t.unindexLocked(rec)
	t.signal()
	return nil
}

// Resume reschedules a paused job with a fire time computed fresh from
// now; missed occurrences are never backfilled. Idempotent. A paused
// job whose trigger has no future occurrence is removed.
func (t *Table) Resume(jobID id.JobID, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.visibleLocked(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if rec.State != StatePaused {
		return nil
	}

	next, hasNext := rec.Trigger.Next(now)
	if !hasNext {
		rec.exhausted = true
		rec.State = StateScheduled
		if rec.Running == 0 {
			delete(t.records, jobID.String())
		}
		return nil
	}

	rec.State = StateScheduled
	rec.NextFire = &next
	heap.Push(&t.byDeadline, rec)
	t.signal()
	return nil
}

// Get returns a snapshot of the record. Removed jobs are absent
// immediately, even while their last instances drain.
func (t *Table) Get(jobID id.JobID) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.visibleLocked(jobID)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return t.snapshotLocked(rec), nil
}

// Jobs returns snapshots of all visible records, ordered by ID.
func (t *Table) Jobs() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		if rec.State == StateRemoved {
			continue
		}
		out = append(out, t.snapshotLocked(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// JobsByState returns snapshots of visible records in the given state.
func (t *Table) JobsByState(state State) []Record {
	all := t.Jobs()
	out := all[:0]
	for _, rec := range all {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of visible records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rec := range t.records {
		if rec.State != StateRemoved {
			n++
		}
	}
	return n
}

// Due describes one due occurrence of a job.
type Due struct {
	JobID   id.JobID
	Name    string
	FireAt  time.Time
	Grace   time.Duration
	Trigger trigger.Trigger
}

// DueAt returns every scheduled job whose fire time is at or before
// now, ordered by fire time then ID.
func (t *Table) DueAt(now time.Time) []Due {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var due []Due
	for _, rec := range t.byDeadline {
		if rec.NextFire == nil || rec.NextFire.After(now) {
			continue
		}
		due = append(due, Due{
			JobID:   rec.ID,
			Name:    rec.Name,
			FireAt:  *rec.NextFire,
			Grace:   rec.MisfireGrace,
			Trigger: rec.Trigger,
		})
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].FireAt.Equal(due[j].FireAt) {
			return due[i].FireAt.Before(due[j].FireAt)
		}
		return due[i].JobID.String() < due[j].JobID.String()
	})
	return due
}

// Earliest returns the minimum next fire time across scheduled jobs.
func (t *Table) Earliest() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.byDeadline) == 0 {
		return time.Time{}, false
	}
	return *t.byDeadline[0].NextFire, true
}

// Advance moves a job's fire time past now by re-evaluating its
// trigger. Called by the timing loop after each dispatch attempt,
// whatever its outcome. No-op unless the job is still scheduled and
// actually due. A job whose trigger is exhausted is deleted once idle.
func (t *Table) Advance(jobID id.JobID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID.String()]
	if !ok || rec.State != StateScheduled || rec.exhausted {
		return
	}
	if rec.NextFire == nil || rec.NextFire.After(now) {
		return
	}

	last := *rec.NextFire
	rec.LastFire = &last

	next, hasNext := rec.Trigger.Next(now)
	if !hasNext {
		rec.NextFire = nil
		rec.exhausted = true
		t.unindexLocked(rec)
		if rec.Running == 0 {
			delete(t.records, jobID.String())
		}
		return
	}

	rec.NextFire = &next
	if rec.heapIndex >= 0 {
		heap.Fix(&t.byDeadline, rec.heapIndex)
	} else {
		heap.Push(&t.byDeadline, rec)
	}
}

// Acquire claims one execution slot for the job. On success it returns
// a snapshot carrying the handler and increments the running count; the
// caller must Release exactly once when the execution completes.
func (t *Table) Acquire(jobID id.JobID) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID.String()]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if rec.State == StateRemoved || rec.exhausted {
		return Record{}, fmt.Errorf("%w: %s", ErrRemoved, jobID)
	}
	if rec.State == StatePaused {
		return Record{}, fmt.Errorf("%w: %s", ErrPaused, jobID)
	}
	if rec.Running >= rec.MaxInstances {
		return Record{}, fmt.Errorf("%w: %s (%d/%d)", ErrInstanceCeiling, jobID, rec.Running, rec.MaxInstances)
	}

	rec.Running++
	return t.snapshotLocked(rec), nil
}

// Release returns an execution slot. It reports whether the record was
// physically deleted (removed or exhausted, and now idle).
func (t *Table) Release(jobID id.JobID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID.String()]
	if !ok {
		return false
	}

	if rec.Running > 0 {
		rec.Running--
	}

	if rec.Running == 0 && (rec.State == StateRemoved || rec.exhausted) {
		t.unindexLocked(rec)
		delete(t.records, jobID.String())
		return true
	}
	return false
}

// visibleLocked looks up a record, hiding removed ones. Call with a lock held.
func (t *Table) visibleLocked(jobID id.JobID) (*Record, bool) {
	rec, ok := t.records[jobID.String()]
	if !ok || rec.State == StateRemoved {
		return nil, false
	}
	return rec, true
}

// snapshotLocked copies a record for external use. The State field is
// presented as running while instances are in flight. Call with a lock held.
func (t *Table) snapshotLocked(rec *Record) Record {
	cp := *rec
	if cp.NextFire != nil {
		next := *rec.NextFire
		cp.NextFire = &next
	}
	if cp.LastFire != nil {
		last := *rec.LastFire
		cp.LastFire = &last
	}
	if cp.State == StateScheduled && cp.Running > 0 {
		cp.State = StateRunning
	}
	cp.heapIndex = -1
	return cp
}

// signal wakes the timing loop without blocking.
func (t *Table) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// unindexLocked removes a record from the deadline heap if indexed.
// Call with the lock held.
func (t *Table) unindexLocked(rec *Record) {
	if rec.heapIndex >= 0 {
		heap.Remove(&t.byDeadline, rec.heapIndex)
		rec.heapIndex = -1
	}
}

// deadlineHeap is a min-heap of scheduled records ordered by NextFire,
// ties broken by ID for a stable dispatch order within a batch.
type deadlineHeap []*Record

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if !h[i].NextFire.Equal(*h[j].NextFire) {
		return h[i].NextFire.Before(*h[j].NextFire)
	}
	return h[i].ID.String() < h[j].ID.String()
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *deadlineHeap) Push(x any) {
	rec := x.(*Record) //nolint:errcheck // heap only ever holds *Record
	rec.heapIndex = len(*h)
	*h = append(*h, rec)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.heapIndex = -1
	*h = old[:n-1]
	return rec
}

// Package store implements the shared learning store: four concurrent
// hash tables (stat, qtext, data, queries) backed by a heap, per-key
// logical locks, crash-safe snapshot files, and overflow policy (§4.D).
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kestrel-db/aqo-predictor/pkg/config"
	"github.com/kestrel-db/aqo-predictor/pkg/predictor/knn"
)

// BackendID identifies one process or connection attached to a Store. It
// carries no meaning to the store itself — it exists so diagnostics for a
// store shared by several concurrent backends (several connections against
// one snapshot directory) can tell them apart.
type BackendID = uuid.UUID

// table identifies one of the four tables; it indexes the per-table dirty
// flags that decide which tables a flush writes.
type table int

const (
	tableStat table = iota
	tableQText
	tableData
	tableQueries
	numTables
)

// StatEntry is the statistics slot keyed by fs: two ring buffers of
// (plan_time, exec_time, est_error) triples, one for executions that used
// the predictor and one for those that did not, plus counters (§3).
type StatEntry struct {
	ExecsWith    int64
	ExecsWithout int64
	Slot         int32 // next write position in the "without" ring
	SlotWith     int32 // next write position in the "with" ring

	ExecTime    [StatSampleSize]float64
	PlanTime    [StatSampleSize]float64
	EstError    [StatSampleSize]float64
	ExecTimeAQO [StatSampleSize]float64
	PlanTimeAQO [StatSampleSize]float64
	EstErrorAQO [StatSampleSize]float64
}

// StatSampleSize is the ring buffer length for stat entries.
const StatSampleSize = 20

// Preferences is the per-class policy record held in the queries table.
type Preferences struct {
	TargetFS  uint64
	Learn     bool
	Use       bool
	AutoTune  bool
}

// DataValue is the heap payload referenced by a data-table entry: the
// learning matrix for one (fs,fss) sub-space plus the relation ids it was
// learned over.
type DataValue struct {
	Cols    int
	Matrix  *knn.Matrix
	Reloids []uint64
}

func dataValueSize(v *DataValue) int64 {
	// Rough accounting for heap-cap purposes: header plus one float64 per
	// matrix cell, target and rfactor, plus one uint64 per reloid.
	return int64(32 + v.Cols*knn.K*8 + knn.K*16 + len(v.Reloids)*8)
}

// Store owns the four tables, the shared heap, and the per-key logical
// locks. It is the single value through which every pipeline touches
// shared state — "a single Store value owning the locks and the heap
// handle; all pipelines receive a handle to it" (§9).
type Store struct {
	cfg config.StoreConfig

	statMu sync.RWMutex
	stat   map[uint64]*StatEntry

	qtextMu sync.RWMutex
	qtext   map[uint64]Handle

	dataMu sync.RWMutex
	data   map[dataKey]Handle

	queriesMu sync.RWMutex
	queries   map[uint64]Preferences

	heap *Heap

	keyLocks [numKeyLocks]sync.Mutex

	dirty [numTables]bool
	dirtyMu sync.Mutex

	backend SnapshotBackend

	attachedMu sync.Mutex
	attached   map[BackendID]struct{}
}

// New creates an empty store bounded by cfg, with snapshot flush/load
// routed through backend (nil disables snapshotting).
func New(cfg config.StoreConfig, backend SnapshotBackend) *Store {
	s := &Store{
		cfg:     cfg,
		stat:    make(map[uint64]*StatEntry),
		qtext:   make(map[uint64]Handle),
		data:    make(map[dataKey]Handle),
		queries: make(map[uint64]Preferences),
		heap:    NewHeap(cfg.DSMSizeMaxMB),
		backend: backend,
		attached: make(map[BackendID]struct{}),
	}
	return s
}

// Attach registers a new backend session against the store and returns its
// id, to be passed back to Detach when the session ends. Flush's debug log
// line includes the current attached count so a multi-backend deployment
// can tell a lone-writer snapshot from a concurrent one; Load does not log
// it.
func (s *Store) Attach() BackendID {
	id := uuid.New()
	s.attachedMu.Lock()
	s.attached[id] = struct{}{}
	n := len(s.attached)
	s.attachedMu.Unlock()
	debugf("aqo: backend %s attached (%d active)\n", id, n)
	return id
}

// Detach releases a session id obtained from Attach.
func (s *Store) Detach(id BackendID) {
	s.attachedMu.Lock()
	delete(s.attached, id)
	n := len(s.attached)
	s.attachedMu.Unlock()
	debugf("aqo: backend %s detached (%d active)\n", id, n)
}

// AttachedCount reports how many backend sessions are currently attached.
func (s *Store) AttachedCount() int {
	s.attachedMu.Lock()
	defer s.attachedMu.Unlock()
	return len(s.attached)
}

func (s *Store) markDirty(t table) {
	s.dirtyMu.Lock()
	s.dirty[t] = true
	s.dirtyMu.Unlock()
}

func (s *Store) isDirty(t table) bool {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.dirty[t]
}

func (s *Store) clearDirty(t table) {
	s.dirtyMu.Lock()
	s.dirty[t] = false
	s.dirtyMu.Unlock()
}

// lockKey acquires the per-(fs,fss) logical lock used by the learning
// pipeline to serialise reads-then-writes against the same key across
// backends (§4.D). The caller must call the returned unlock func.
func (s *Store) lockKey(fs uint64, fss uint32) func() {
	idx := logicalLockIndex(fs, fss)
	s.keyLocks[idx].Lock()
	return func() { s.keyLocks[idx].Unlock() }
}

// HeapUsedBytes reports current heap usage, for diagnostics and tests.
func (s *Store) HeapUsedBytes() int64 {
	return s.heap.UsedBytes()
}

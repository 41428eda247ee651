package registry

// The registry owns one record per module. A record moves through these
// states, and never moves backwards except that a failed link leaves it
// unlinked so a later import can report the same problem again:
//
//   Unlinked -> Linking -> Linked -> Evaluating -> Evaluated
//                                              \-> Errored
//
// Linking and evaluation follow the depth-first algorithm used for cyclic
// module records: each record gets a DFS index and an ancestor index, and
// every record in a strongly connected component changes state together.
// All of this runs on the host's thread. Loader goroutines only see the
// record map and each record's "loaded" flag, both guarded by the registry
// mutex.

import (
	"sync"

	"github.com/evanw/esmloader/internal/ast"
	"github.com/evanw/esmloader/internal/compiler"
	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
)

type State uint8

const (
	// The record exists but SetModule has not been called yet
	StateNew State = iota
	StateUnlinked
	StateLinking
	StateLinked
	StateEvaluating
	StateEvaluated
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUnlinked:
		return "unlinked"
	case StateLinking:
		return "linking"
	case StateLinked:
		return "linked"
	case StateEvaluating:
		return "evaluating"
	case StateEvaluated:
		return "evaluated"
	case StateErrored:
		return "errored"
	default:
		panic("Internal error")
	}
}

// Host runs compiled modules. Both methods are called at most once per
// record and always on the host's thread.
type Host interface {
	// Runs the part of the module before its first "yield". This is expected
	// to call BindExports for the module and Watch for each of its imports.
	Instantiate(record *Record) error

	// Runs the rest of the module
	Evaluate(record *Record) error

	// Returns the host's representation of a namespace. Called every time an
	// importer asks for one, so the host should cache it per record.
	NamespaceValue(ns *Namespace) any
}

type Record struct {
	registry *Registry

	ID     ast.ModuleID
	Source logger.Source
	JS     []byte
	Info   ast.ModuleInfo

	// Parallel to Info.ImportRecords
	deps []*Record

	state State
	err   error

	// Set by SetModule while holding the registry mutex
	loaded bool

	// Local exports by exported name. The set of names is fixed by SetModule
	// and the getters are filled in when the module is instantiated.
	slots     map[string]*Slot
	namespace *Namespace

	instantiated bool

	// For depth-first linking and evaluation
	dfsIndex         int
	dfsAncestorIndex int

	// Owned by the host
	HostData any
}

func (rec *Record) State() State {
	return rec.state
}

// Err returns the evaluation error of an errored record
func (rec *Record) Err() error {
	return rec.err
}

// Deps returns the records of the module's static imports, in source order
func (rec *Record) Deps() []*Record {
	return rec.deps
}

// Dep returns the record for an import record index of this module
func (rec *Record) Dep(importRecordIndex uint32) *Record {
	return rec.deps[importRecordIndex]
}

// SetModule attaches the compiled module and the records of its
// dependencies, which must be parallel to the module's import records
func (rec *Record) SetModule(result compiler.Result, deps []*Record) {
	if rec.state != StateNew {
		panic("Internal error")
	}
	if len(deps) != len(result.Info.ImportRecords) {
		panic("Internal error")
	}
	rec.Source = result.Source
	rec.JS = result.JS
	rec.Info = result.Info
	rec.deps = deps
	rec.slots = make(map[string]*Slot, len(result.Info.LocalExports))
	for _, export := range result.Info.LocalExports {
		rec.slots[export.Name] = &Slot{}
	}
	rec.setState(StateUnlinked)

	rec.registry.mutex.Lock()
	rec.loaded = true
	rec.registry.mutex.Unlock()
}

func (rec *Record) setState(state State) {
	logger.Zap().Debug("module state",
		zap.String("id", rec.ID.String()),
		zap.Stringer("from", rec.state),
		zap.Stringer("to", state))
	rec.state = state
}

type Registry struct {
	host Host

	mutex   sync.Mutex
	records map[ast.ModuleID]*Record
}

func New(host Host) *Registry {
	return &Registry{
		host:    host,
		records: make(map[ast.ModuleID]*Record),
	}
}

// GetOrCreate returns the record for "id", creating an empty one if there
// is none. The second return value is true if the record was created.
func (r *Registry) GetOrCreate(id ast.ModuleID) (*Record, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if rec, ok := r.records[id]; ok {
		return rec, false
	}
	rec := &Record{registry: r, ID: id}
	r.records[id] = rec
	return rec, true
}

// Get returns the record for "id" if there is one with a module attached
func (r *Registry) Get(id ast.ModuleID) (*Record, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	if !ok || !rec.loaded {
		return nil, false
	}
	return rec, true
}

// Len returns the number of records, including ones still being created
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.records)
}

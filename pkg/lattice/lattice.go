// Package lattice is the façade a caller imports: it resolves a schema,
// wires the store, index manager, rollup cache, and change tracker
// together behind one fan-out store.Tracker, and constructs pkg/view
// Views from pkg/query Querys.
//
// Open/Options/Close mirror the teacher's own top-level facade,
// pkg/nornicdb/db.go — a single constructor taking an Options struct,
// an explicit Close, and doc comments in the same register, scaled down
// from a multi-subsystem memory/decay/search database to this spec's
// schema/query/view database.
package lattice

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lattice-db/lattice/pkg/exec"
	"github.com/lattice-db/lattice/pkg/index"
	"github.com/lattice-db/lattice/pkg/query"
	"github.com/lattice-db/lattice/pkg/rollup"
	"github.com/lattice-db/lattice/pkg/schema"
	"github.com/lattice-db/lattice/pkg/store"
	"github.com/lattice-db/lattice/pkg/tracker"
	"github.com/lattice-db/lattice/pkg/value"
	"github.com/lattice-db/lattice/pkg/view"
)

// Options configures a DB. A zero Options is valid: a nil Logger means
// no logging, a nil Metrics means no metrics are recorded.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
}

// DB is the process-lifetime, in-memory database described by spec.md:
// one resolved Schema, one Store, and however many live Subscriptions
// and Views client code opens against it. There is no persisted state.
// The DB does not keep a list of the Views it hands out; each View is
// closed through its own Close.
type DB struct {
	schema  *schema.Schema
	store   *store.Store
	index   *index.Manager
	rollups *rollup.Cache
	exec    *exec.Executor
	tracker *tracker.ChangeTracker
	log     *zap.Logger
	metrics *Metrics
}

// fanout implements store.Tracker by forwarding every mutation to the
// index manager, rollup cache, and change tracker in turn. Store.SetTracker
// only accepts one Tracker, so this is the one place all three observers
// are combined — none of index.Manager, rollup.Cache, or
// tracker.ChangeTracker know about each other.
type fanout struct {
	idx *index.Manager
	rc  *rollup.Cache
	ct  *tracker.ChangeTracker
	m   *Metrics
}

func (f fanout) NodeInserted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeInserted(id, typ)
	f.rc.NodeInserted(id, typ)
	f.ct.NodeInserted(id, typ)
	f.m.incInserted()
}

func (f fanout) NodeUpdated(id store.NodeId, before, after map[string]value.Value) {
	f.idx.NodeUpdated(id, before, after)
	f.rc.NodeUpdated(id, before, after)
	f.ct.NodeUpdated(id, before, after)
	f.m.incUpdated()
}

func (f fanout) NodeDeleted(id store.NodeId, typ schema.TypeId) {
	f.idx.NodeDeleted(id, typ)
	f.rc.NodeDeleted(id, typ)
	f.ct.NodeDeleted(id, typ)
	f.m.incDeleted()
}

func (f fanout) Linked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Linked(src, edge, tgt)
	f.rc.Linked(src, edge, tgt)
	f.ct.Linked(src, edge, tgt)
	f.m.incLinked()
}

func (f fanout) Unlinked(src store.NodeId, edge schema.EdgeId, tgt store.NodeId) {
	f.idx.Unlinked(src, edge, tgt)
	f.rc.Unlinked(src, edge, tgt)
	f.ct.Unlinked(src, edge, tgt)
	f.m.incUnlinked()
}

// Open resolves in into a Schema and wires a fresh, empty DB around it.
// A nil Options behaves like a zero Options.
func Open(in schema.Input, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{}
	}
	s, err := schema.Resolve(in)
	if err != nil {
		return nil, fmt.Errorf("lattice: resolving schema: %w", err)
	}

	st := store.New(s)
	idx := index.New(s, st)
	rc := rollup.New(s, st)
	idx.SetRollups(rc)
	ex := exec.New(s, st, idx, rc)
	ct := tracker.New(s, ex, opts.Logger)

	m := opts.Metrics
	st.SetTracker(fanout{idx: idx, rc: rc, ct: ct, m: m})

	if opts.Logger != nil {
		opts.Logger.Info("lattice: opened", zap.Int("types", len(s.Types())))
	}

	return &DB{
		schema:  s,
		store:   st,
		index:   idx,
		rollups: rc,
		exec:    ex,
		tracker: ct,
		log:     opts.Logger,
		metrics: m,
	}, nil
}

// Schema returns the resolved schema this DB was opened with.
func (db *DB) Schema() *schema.Schema { return db.schema }

// Insert creates a new node of typeName with no properties and no edges.
func (db *DB) Insert(typeName string) (store.NodeId, error) {
	return db.store.Insert(typeName)
}

// Update sets one or more properties on an existing node.
func (db *DB) Update(id store.NodeId, props map[string]value.Value) error {
	return db.store.Update(id, props)
}

// Delete removes a node and every edge attached to it (cascading to the
// reverse edge at each neighbor, per spec.md §4.1).
func (db *DB) Delete(id store.NodeId) error {
	return db.store.Delete(id)
}

// Link adds tgt to src's edgeName list (and src to tgt's reverse list).
func (db *DB) Link(src store.NodeId, edgeName string, tgt store.NodeId) error {
	return db.store.Link(src, edgeName, tgt)
}

// Unlink removes tgt from src's edgeName list (and the reverse pairing).
func (db *DB) Unlink(src store.NodeId, edgeName string, tgt store.NodeId) error {
	return db.store.Unlink(src, edgeName, tgt)
}

// Get returns a live node by id.
func (db *DB) Get(id store.NodeId) (*store.Node, error) {
	return db.store.Get(id)
}

// Subscribe validates q and opens a windowed, reactive View over its
// live result set. onEvent is invoked synchronously from whichever
// mutating DB method (Insert/Update/Delete/Link/Unlink) triggered the
// change, so it must not call back into db from within itself.
func (db *DB) Subscribe(q *query.Query, height int, onEvent func(view.Event)) (*view.View, error) {
	if err := q.Validate(db.schema); err != nil {
		return nil, fmt.Errorf("lattice: invalid query: %w", err)
	}
	v, err := view.New(db.tracker, db.exec, db.schema, q, height, onEvent)
	if err != nil {
		return nil, err
	}
	if db.metrics != nil {
		db.metrics.incSubscriptions()
	}
	return v, nil
}

// Close logs the close when a Logger is set and does nothing else: it
// does not unsubscribe or close the Views returned by Subscribe. A DB has
// no persisted state, so there is nothing to flush; Close exists for
// symmetry with Open and to make lifetime explicit in caller code,
// matching the teacher's own Open/Close pairing.
func (db *DB) Close() {
	if db.log != nil {
		db.log.Info("lattice: closed")
	}
}

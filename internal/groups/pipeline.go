// Package groups owns the selectable satellite groups and the roster of
// tracked objects built from the selected ones.
//
// Each group entry moves Unselected → Loading → Selected on a successful
// load and back to Unselected on failure or deselection. Loads run as
// cancellable background tasks whose results are delivered over a channel
// and applied by Run, HandleNext or Drain. Every task carries a per-entry
// token; a result whose token no longer matches its entry is discarded.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/metrics"
	"github.com/star/orbtrack/internal/propagation"
)

const tracerName = "github.com/star/orbtrack/internal/groups"

var (
	// ErrUnknownGroup is returned for an entry index outside the group list.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrStaleRef is returned when resolving a reference taken from an
	// older roster.
	ErrStaleRef = errors.New("roster changed since reference was taken")

	// ErrUnknownObject is returned for a roster index out of range.
	ErrUnknownObject = errors.New("unknown object")

	// ErrClosed is returned by operations on a closed pipeline.
	ErrClosed = errors.New("pipeline closed")
)

// Loader resolves a group's element sets. *catalog.Loader implements it.
type Loader interface {
	// Cached returns a fresh cached record without touching the network.
	Cached(g catalog.Group) ([]catalog.ElementSet, bool)
	// Load returns the fresh cached record or fetches a new one.
	Load(ctx context.Context, g catalog.Group) ([]catalog.ElementSet, error)
}

// Result is the outcome of one background load. Objects are built by the
// task itself so HandleResult only swaps them in.
type Result struct {
	index   int
	token   uint64
	objects []*propagation.Object
	err     error
}

type entry struct {
	group   catalog.Group
	state   State
	err     error
	objects []*propagation.Object

	token      uint64
	cancel     context.CancelFunc // non-nil while a task is in flight
	refreshing bool
}

// Pipeline owns the group entries and the roster built from them. All
// methods are safe for concurrent use.
type Pipeline struct {
	loader   Loader
	factory  propagation.ModelFactory
	logger   *slog.Logger
	tracer   trace.Tracer
	interval time.Duration

	ctx     context.Context
	stop    context.CancelFunc
	results chan Result
	wg      sync.WaitGroup

	mu          sync.Mutex
	entries     []*entry
	roster      []*propagation.Object
	version     uint64
	closed      bool
	subscribers map[int]chan Event
	nextSub     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithModelFactory sets the factory used to build tracked objects.
func WithModelFactory(f propagation.ModelFactory) Option {
	return func(p *Pipeline) { p.factory = f }
}

// WithRefreshInterval sets how often Run reloads the selected groups. A
// non-positive interval disables periodic refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// New creates a pipeline with one Unselected entry per group.
func New(groups []catalog.Group, loader Loader, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	entries := make([]*entry, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(g.Label)
		if seen[key] {
			return nil, fmt.Errorf("duplicate group label %q", g.Label)
		}
		seen[key] = true
		entries = append(entries, &entry{group: g})
	}

	ctx, stop := context.WithCancel(context.Background())
	p := &Pipeline{
		loader:      loader,
		factory:     propagation.DefaultFactory,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		ctx:         ctx,
		stop:        stop,
		results:     make(chan Result, len(entries)),
		entries:     entries,
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.publishStates()
	metrics.SetRosterObjects(0)
	return p, nil
}

// Select starts loading entry i. A fresh cache record is applied before
// Select returns and the entry becomes Selected; otherwise a background load
// starts and the entry stays Loading. Selecting an entry that is not
// Unselected is a no-op.
//
// The cache read and object construction run without holding the pipeline
// lock. A Deselect or Close in the meantime wins and the record is dropped.
func (p *Pipeline) Select(i int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	e, err := p.entry(i)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if e.state != Unselected {
		p.mu.Unlock()
		return nil
	}
	p.cancelTask(e)
	e.state = Loading
	e.err = nil
	token := e.token
	group := e.group
	p.changed(i, e)
	p.mu.Unlock()

	var objects []*propagation.Object
	sets, cached := p.loader.Cached(group)
	if cached {
		objects = p.build(group, sets)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if e.token != token || e.state != Loading {
		p.logger.Debug("selection superseded during cache read", "group", group.Label)
		return nil
	}
	if cached {
		p.logger.Info("group loaded from cache", "group", group.Label, "objects", len(objects))
		p.install(i, e, objects)
		return nil
	}
	p.spawn(i, e)
	return nil
}

// Deselect cancels any in-flight load of entry i, removes its objects from
// the roster and marks it Unselected. Deselecting an Unselected entry is a
// no-op.
func (p *Pipeline) Deselect(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	e, err := p.entry(i)
	if err != nil {
		return err
	}
	if e.state == Unselected {
		return nil
	}

	p.cancelTask(e)
	wasSelected := e.state == Selected
	e.state = Unselected
	e.objects = nil
	if wasSelected {
		p.rebuild()
	}
	p.changed(i, e)
	return nil
}

// Toggle deselects entry i if it is Loading or Selected and selects it
// otherwise.
func (p *Pipeline) Toggle(i int) error {
	p.mu.Lock()
	e, err := p.entry(i)
	var state State
	if err == nil {
		state = e.state
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if state == Unselected {
		return p.Select(i)
	}
	return p.Deselect(i)
}

// Refresh reloads every Selected entry in the background. Entries stay
// Selected with their current objects until their result arrives.
func (p *Pipeline) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	var n int
	for i, e := range p.entries {
		if e.state != Selected {
			continue
		}
		p.spawn(i, e)
		e.refreshing = true
		p.changed(i, e)
		n++
	}
	if n > 0 {
		p.logger.Info("refreshing selected groups", "groups", n)
	}
}

// spawn cancels any task of e and starts a new one. Callers hold p.mu.
func (p *Pipeline) spawn(i int, e *entry) {
	p.cancelTask(e)

	ctx, cancel := context.WithCancel(p.ctx)
	e.cancel = cancel
	token := e.token
	group := e.group

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		ctx, span := p.tracer.Start(ctx, "groups.Load", trace.WithAttributes(
			attribute.String("group.label", group.Label),
			attribute.String("group.identifier", group.Identifier.String()),
		))
		sets, err := p.loader.Load(ctx, group)
		var objects []*propagation.Object
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("group.element_sets", len(sets)))
			objects = p.build(group, sets)
		}
		span.End()

		select {
		case p.results <- Result{index: i, token: token, objects: objects, err: err}:
		case <-ctx.Done():
		}
	}()
}

// cancelTask cancels e's in-flight task and invalidates its token. It is
// safe to call when no task is running. Callers hold p.mu.
func (p *Pipeline) cancelTask(e *entry) {
	e.token++
	e.refreshing = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// HandleResult applies a load result and reports whether it was applied.
// Results for entries that were deselected, reselected or refreshed since
// the task started are discarded.
func (p *Pipeline) HandleResult(r Result) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || r.index < 0 || r.index >= len(p.entries) {
		return false
	}
	e := p.entries[r.index]
	if r.token != e.token || e.state == Unselected {
		p.logger.Debug("discarding stale group result", "group", e.group.Label)
		return false
	}

	e.token++
	e.cancel = nil
	e.refreshing = false

	if r.err != nil {
		p.logger.Error("group load failed", "group", e.group.Label, "error", r.err)
		metrics.IncGroupFailures()
		wasSelected := e.state == Selected
		e.state = Unselected
		e.err = r.err
		e.objects = nil
		if wasSelected {
			p.rebuild()
		}
		p.changed(r.index, e)
		return true
	}

	p.logger.Info("group loaded", "group", e.group.Label, "objects", len(r.objects))
	p.install(r.index, e, r.objects)
	return true
}

// build materializes sets into tracked objects, skipping invalid ones. It
// takes no lock.
func (p *Pipeline) build(g catalog.Group, sets []catalog.ElementSet) []*propagation.Object {
	objects, rejected := propagation.NewObjects(sets, p.factory, p.logger)
	if rejected > 0 {
		p.logger.Warn("element sets rejected", "group", g.Label, "rejected", rejected)
	}
	return objects
}

// install makes objects e's roster contribution and marks it Selected.
// Callers hold p.mu.
func (p *Pipeline) install(i int, e *entry, objects []*propagation.Object) {
	e.objects = objects
	e.state = Selected
	e.err = nil
	p.rebuild()
	p.changed(i, e)
}

// rebuild concatenates the objects of every Selected entry in entry order
// and bumps the roster version. Callers hold p.mu.
func (p *Pipeline) rebuild() {
	var n int
	for _, e := range p.entries {
		n += len(e.objects)
	}
	roster := make([]*propagation.Object, 0, n)
	for _, e := range p.entries {
		if e.state == Selected {
			roster = append(roster, e.objects...)
		}
	}
	p.roster = roster
	p.version++
	metrics.SetRosterObjects(len(roster))
}

func (p *Pipeline) publishStates() {
	counts := map[string]int{
		Unselected.String(): 0,
		Loading.String():    0,
		Selected.String():   0,
	}
	for _, e := range p.entries {
		counts[e.state.String()]++
	}
	metrics.SetGroupStates(counts)
}

func (p *Pipeline) entry(i int) (*entry, error) {
	if i < 0 || i >= len(p.entries) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownGroup, i)
	}
	return p.entries[i], nil
}

// HandleNext waits for one load result and applies it. It reports whether
// the result was applied.
func (p *Pipeline) HandleNext(ctx context.Context) (bool, error) {
	select {
	case r := <-p.results:
		return p.HandleResult(r), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Drain applies every result already delivered without blocking and
// returns how many were applied.
func (p *Pipeline) Drain() int {
	var n int
	for {
		select {
		case r := <-p.results:
			if p.HandleResult(r) {
				n++
			}
		default:
			return n
		}
	}
}

// Run applies results as they arrive and refreshes the selected groups
// every refresh interval until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-p.results:
			p.HandleResult(r)
		case <-tick:
			p.Refresh()
		}
	}
}

// Close cancels every in-flight load and waits for the tasks to exit.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, e := range p.entries {
		p.cancelTask(e)
	}
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
}

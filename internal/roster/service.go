// Package roster is the member ordering service. It wires the pure ordering core to a
// store backend, serialises writes per collection and persists reconciliation results.
package roster

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"roster-cli/internal/metrics"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/store"
)

// Event is published after every successful mutation.
type Event struct {
	Collection string   `json:"collection"`
	Op         string   `json:"op"`
	IDs        []string `json:"ids,omitempty"`
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Now is used for timestamps and ids; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store   store.Backend
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	locks *xsync.MapOf[string, *sync.Mutex]
	reads singleflight.Group

	watchMu  sync.RWMutex
	watchers map[int]func(Event)
	nextID   int
}

func New(b store.Backend, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    b,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
		watchers: map[int]func(Event){},
	}
}

// Watch registers fn for mutation events. The returned func unregisters it.
// fn runs synchronously on the mutating goroutine and must not block.
func (s *Service) Watch(fn func(Event)) (cancel func()) {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Service) publish(ev Event) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	for _, fn := range s.watchers {
		fn(ev)
	}
}

// lock takes the write lock of a collection.
func (s *Service) lock(collection string) func() {
	mu, _ := s.locks.LoadOrCompute(collection, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (s *Service) collection(name string) (string, error) {
	return store.NormalizeCollection(name)
}

// List returns the reconciled members of a collection arranged for display.
func (s *Service) List(ctx context.Context, collection string, mode order.SortMode) (items []model.Member, err error) {
	defer s.observe("list", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	ordered, err := s.reconciled(ctx, col)
	if err != nil {
		return nil, err
	}
	return order.Arrange(ordered, mode), nil
}

// reconciled is the read path: members in display order, with any pending
// repair persisted first. Concurrent readers of one collection share one pass.
func (s *Service) reconciled(ctx context.Context, col string) ([]model.Member, error) {
	v, err, _ := s.reads.Do(col, func() (any, error) {
		items, err := s.store.ListMembers(ctx, col)
		if err != nil {
			return nil, err
		}
		if !order.NeedsReconcile(items) {
			return order.Ordered(items), nil
		}
		unlock := s.lock(col)
		defer unlock()
		out, _, err := s.reconcileLocked(ctx, col, "reconcile_on_read")
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Member(nil), v.([]model.Member)...), nil
}

// reconcileLocked re-reads the collection, repairs ranks and persists the changes in
// one batch. The collection lock must be held.
func (s *Service) reconcileLocked(ctx context.Context, col, op string) ([]model.Member, map[string]int, error) {
	items, err := s.store.ListMembers(ctx, col)
	if err != nil {
		return nil, nil, err
	}
	out, changes := order.Reconcile(items)
	if len(changes) == 0 {
		return out, changes, nil
	}
	if err := s.store.SetRanks(ctx, col, changes); err != nil {
		s.log.Warn("reconcile failed; will retry on next read",
			zap.String("collection", col),
			zap.Int("changes", len(changes)),
			zap.Error(err),
		)
		return nil, nil, err
	}
	s.metrics.AddRanks(op, len(changes))
	s.log.Info("ranks reconciled",
		zap.String("collection", col),
		zap.String("op", op),
		zap.Int("changes", len(changes)),
	)
	s.publish(Event{Collection: col, Op: "reconcile", IDs: changedIDs(out, changes)})
	return out, changes, nil
}

type ReconcileResult struct {
	Collection string         `json:"collection"`
	Changed    int            `json:"changed"`
	Ranks      map[string]int `json:"ranks"`
	Members    []model.Member `json:"members"`
}

// Reconcile forces a repair pass and reports what it rewrote.
func (s *Service) Reconcile(ctx context.Context, collection string) (res ReconcileResult, err error) {
	defer s.observe("reconcile", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return ReconcileResult{}, err
	}
	unlock := s.lock(col)
	defer unlock()
	out, changes, err := s.reconcileLocked(ctx, col, "reconcile")
	if err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{Collection: col, Changed: len(changes), Ranks: changes, Members: out}, nil
}

// Doctor reports rank and field problems as stored, before any read-time repair.
func (s *Service) Doctor(ctx context.Context, collection string) (rep store.DoctorReport, err error) {
	defer s.observe("doctor", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return store.DoctorReport{}, err
	}
	return store.Doctor(ctx, s.store, col, SnapshotKey), nil
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, start, *err)
}

// changedIDs lists the ids in changes following the display order of items.
func changedIDs(items []model.Member, changes map[string]int) []string {
	ids := make([]string, 0, len(changes))
	for _, m := range items {
		if _, ok := changes[m.ID]; ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

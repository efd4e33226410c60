package roster

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/store"
)

// SnapshotKey is the per-member meta key holding the rank before a persisted reflow.
const SnapshotKey = "reflow.prev_rank"

type MoveResult struct {
	order.MovePlan
	Members []model.Member `json:"members"`
}

// Move swaps a member with its nearest neighbour. At either end of the list it is a
// successful no-op. Both rank writes land in one batch.
func (s *Service) Move(ctx context.Context, collection, id string, dir order.Direction) (res MoveResult, err error) {
	defer s.observe("move", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return MoveResult{}, err
	}
	if _, err := order.ParseDirection(string(dir)); err != nil {
		return MoveResult{}, err
	}

	unlock := s.lock(col)
	defer unlock()
	items, _, err := s.reconcileLocked(ctx, col, "move")
	if err != nil {
		return MoveResult{}, err
	}
	plan, err := order.PlanMove(items, id, dir)
	if err != nil {
		return MoveResult{}, err
	}
	if !plan.Moved {
		s.log.Debug("move is a no-op at list boundary",
			zap.String("collection", col),
			zap.String("id", plan.ID),
			zap.String("direction", string(dir)),
		)
		return MoveResult{MovePlan: plan, Members: items}, nil
	}
	// A manual move commits the current layout; an older reflow can no longer be undone.
	if err := s.store.CommitRanks(ctx, col, plan.Ranks, store.MetaChange{Key: SnapshotKey, Clear: true}); err != nil {
		return MoveResult{}, err
	}
	s.metrics.AddRanks("move", len(plan.Ranks))
	s.log.Info("member moved",
		zap.String("collection", col),
		zap.String("id", plan.ID),
		zap.String("neighbor", plan.NeighborID),
		zap.String("direction", string(dir)),
	)
	s.publish(Event{Collection: col, Op: "move", IDs: []string{plan.ID, plan.NeighborID}})
	return MoveResult{MovePlan: plan, Members: order.Apply(items, plan.Ranks)}, nil
}

type ReflowRequest struct {
	// ID selects the expanded member. When empty, Index is used.
	ID      string
	Index   int
	Columns int
	// Persist writes the new ranks and records a snapshot for Collapse.
	Persist bool
}

type ReflowResult struct {
	Collection string           `json:"collection"`
	ExpandedID string           `json:"expandedId"`
	Columns    int              `json:"columns"`
	Persisted  bool             `json:"persisted"`
	Members    []model.Member   `json:"members"`
	Rows       [][]model.Member `json:"rows"`
}

// Reflow expands one member to a row of its own. Without Persist it only previews
// the new order. Only one reflow is undoable: when a snapshot already exists the
// reflow starts from the snapshot order and the snapshot is kept.
func (s *Service) Reflow(ctx context.Context, collection string, req ReflowRequest) (res ReflowResult, err error) {
	defer s.observe("reflow", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return ReflowResult{}, err
	}
	if req.Columns < 1 {
		return ReflowResult{}, model.ValidationError{Field: "columns", Reason: "must be at least 1"}
	}

	unlock := s.lock(col)
	defer unlock()
	items, _, err := s.reconcileLocked(ctx, col, "reflow")
	if err != nil {
		return ReflowResult{}, err
	}
	snap, err := s.loadSnapshot(ctx, col)
	if err != nil {
		return ReflowResult{}, err
	}
	base := items
	if len(snap) > 0 {
		base = order.Collapse(items, snap)
	}

	// Index counts positions in the current order; the reflow itself runs on base.
	id := strings.TrimSpace(req.ID)
	if id == "" && req.Index >= 0 && req.Index < len(items) {
		id = items[req.Index].ID
	}
	idx := req.Index
	if id != "" {
		idx = order.IndexOf(base, id)
		if idx < 0 {
			return ReflowResult{}, model.NotFoundError{Kind: "member", ID: id}
		}
	}
	out, err := order.Reflow(base, req.Columns, idx)
	if err != nil {
		return ReflowResult{}, err
	}
	expanded := base[idx].ID
	res = ReflowResult{
		Collection: col,
		ExpandedID: expanded,
		Columns:    req.Columns,
		Members:    out,
		Rows:       order.Rows(out, req.Columns, expanded),
	}
	if !req.Persist {
		return res, nil
	}

	meta := store.MetaChange{Key: SnapshotKey}
	if len(snap) == 0 {
		meta.Set = make(map[string]string, len(items))
		for _, m := range items {
			meta.Set[m.ID] = strconv.Itoa(m.Rank)
		}
	}
	changes := order.RankChanges(items, out)
	if err := s.store.CommitRanks(ctx, col, changes, meta); err != nil {
		return ReflowResult{}, err
	}
	res.Persisted = true
	s.metrics.AddRanks("reflow", len(changes))
	s.log.Info("collection reflowed",
		zap.String("collection", col),
		zap.String("expanded", expanded),
		zap.Int("columns", req.Columns),
		zap.Int("changes", len(changes)),
	)
	s.publish(Event{Collection: col, Op: "reflow", IDs: changedIDs(out, changes)})
	return res, nil
}

type CollapseResult struct {
	Collection string         `json:"collection"`
	Restored   int            `json:"restored"`
	Members    []model.Member `json:"members"`
}

// Collapse restores the ranks recorded by the last persisted reflow and drops the
// snapshot. Without a snapshot it is a no-op.
func (s *Service) Collapse(ctx context.Context, collection string) (res CollapseResult, err error) {
	defer s.observe("collapse", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return CollapseResult{}, err
	}

	unlock := s.lock(col)
	defer unlock()
	snap, err := s.loadSnapshot(ctx, col)
	if err != nil {
		return CollapseResult{}, err
	}
	if len(snap) == 0 {
		items, _, err := s.reconcileLocked(ctx, col, "collapse")
		if err != nil {
			return CollapseResult{}, err
		}
		return CollapseResult{Collection: col, Members: items}, nil
	}

	items, err := s.store.ListMembers(ctx, col)
	if err != nil {
		return CollapseResult{}, err
	}
	changes := order.RankChanges(items, order.Collapse(items, snap))
	if err := s.store.CommitRanks(ctx, col, changes, store.MetaChange{Key: SnapshotKey, Clear: true}); err != nil {
		return CollapseResult{}, err
	}
	// Members created after the reflow may now collide with restored ranks.
	out, _, err := s.reconcileLocked(ctx, col, "collapse")
	if err != nil {
		return CollapseResult{}, err
	}
	s.metrics.AddRanks("collapse", len(changes))
	s.log.Info("reflow collapsed", zap.String("collection", col), zap.Int("restored", len(changes)))
	s.publish(Event{Collection: col, Op: "collapse", IDs: changedIDs(out, changes)})
	return CollapseResult{Collection: col, Restored: len(changes), Members: out}, nil
}

// loadSnapshot reads the reflow snapshot; unparsable entries are ignored.
func (s *Service) loadSnapshot(ctx context.Context, col string) (order.Snapshot, error) {
	raw, err := s.store.ListMeta(ctx, col, SnapshotKey)
	if err != nil {
		return nil, err
	}
	snap := make(order.Snapshot, len(raw))
	for id, v := range raw {
		r, err := strconv.Atoi(v)
		if err != nil || r <= 0 {
			continue
		}
		snap[id] = r
	}
	return snap, nil
}

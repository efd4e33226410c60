package roster

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster-cli/internal/metrics"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/store"
)

func testClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T, b store.Backend) *Service {
	t.Helper()
	if b == nil {
		b = store.NewMemory()
	}
	return New(b, Options{Metrics: metrics.New(), Now: testClock()})
}

// seed creates members named by names in order and returns their ids.
func seed(t *testing.T, s *Service, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, n := range names {
		m, err := s.Create(context.Background(), "team", MemberInput{Name: n})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	return ids
}

func names(items []model.Member) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.Name
	}
	return out
}

func ranks(items []model.Member) []int {
	out := make([]int, len(items))
	for i, m := range items {
		out[i] = m.Rank
	}
	return out
}

func TestList_SeedsRanksInCreationOrderAndPersists(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemory()
	s := newTestService(t, b)
	seed(t, s, "A", "B", "C")

	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(items))
	assert.Equal(t, []int{1, 2, 3}, ranks(items))

	raw, err := b.ListMembers(ctx, "team")
	require.NoError(t, err)
	assert.False(t, order.NeedsReconcile(raw), "reconciled ranks should be persisted")
}

func TestList_NewMemberAppendedAfterMax(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "A", "B")
	_, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)

	seed(t, s, "C")
	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(items))
	assert.Equal(t, 3, items[2].Rank)
}

func TestList_SortModes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "Carol", "alice", "Bob")

	items, err := s.List(ctx, "team", order.SortName)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "Bob", "Carol"}, names(items))

	items, err = s.List(ctx, "team", order.SortDateDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "alice", "Carol"}, names(items))
}

func TestList_InvalidCollection(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.List(context.Background(), "no/slashes", order.SortManual)
	assert.True(t, model.IsValidation(err))
}

func TestMove_SwapsWithNeighbour(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C")

	res, err := s.Move(ctx, "team", ids[2], order.Up)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, ids[1], res.NeighborID)
	assert.Equal(t, []string{"A", "C", "B"}, names(res.Members))

	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, names(items))
	assert.Equal(t, []int{1, 2, 3}, ranks(items))
}

func TestMove_RoundTripRestoresOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D")

	before, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	_, err = s.Move(ctx, "team", ids[1], order.Down)
	require.NoError(t, err)
	_, err = s.Move(ctx, "team", ids[1], order.Up)
	require.NoError(t, err)
	after, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMove_BoundariesAreNoOps(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B")

	res, err := s.Move(ctx, "team", ids[0], order.Up)
	require.NoError(t, err)
	assert.False(t, res.Moved)

	res, err = s.Move(ctx, "team", ids[1], order.Down)
	require.NoError(t, err)
	assert.False(t, res.Moved)

	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B"}, names(items))
}

func TestMove_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A")

	_, err := s.Move(ctx, "team", "member-missing", order.Up)
	assert.True(t, model.IsNotFound(err), "got %v", err)

	_, err = s.Move(ctx, "team", ids[0], order.Direction("sideways"))
	assert.True(t, model.IsValidation(err), "got %v", err)
}

// flakyBackend fails rank batches on demand.
type flakyBackend struct {
	store.Backend
	failRanks bool
}

func (f *flakyBackend) SetRanks(ctx context.Context, collection string, ranks map[string]int) error {
	if f.failRanks {
		return model.PersistenceError{Op: "set ranks", Err: errors.New("disk full")}
	}
	return f.Backend.SetRanks(ctx, collection, ranks)
}

func (f *flakyBackend) CommitRanks(ctx context.Context, collection string, ranks map[string]int, meta store.MetaChange) error {
	if f.failRanks {
		return model.PersistenceError{Op: "commit ranks", Err: errors.New("disk full")}
	}
	return f.Backend.CommitRanks(ctx, collection, ranks, meta)
}

func TestMove_FailedWriteLeavesBothRanks(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{Backend: store.NewMemory()}
	s := newTestService(t, fb)
	ids := seed(t, s, "A", "B")
	_, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)

	fb.failRanks = true
	_, err = s.Move(ctx, "team", ids[1], order.Up)
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))

	fb.failRanks = false
	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(items))
	assert.Equal(t, []int{1, 2}, ranks(items))
}

func TestList_ReconcileFailureRetriesOnNextRead(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{Backend: store.NewMemory(), failRanks: true}
	s := newTestService(t, fb)
	seed(t, s, "A", "B")

	_, err := s.List(ctx, "team", order.SortManual)
	require.Error(t, err)

	fb.failRanks = false
	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ranks(items))
}

func TestReflow_PreviewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D", "E", "F")

	res, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 3})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, []string{"B", "A", "C", "D", "E", "F"}, names(res.Members))
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"B"}, names(res.Rows[0]))

	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names(items))
}

func TestReflow_PersistThenCollapse(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D", "E", "F")

	res, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[4], Columns: 2, Persist: true})
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names(items))

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[3], Columns: 3, Persist: true})
	require.NoError(t, err)
	items, _ = s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names(items), "D already starts a row of three")

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[2], Columns: 2, Persist: true})
	require.NoError(t, err)
	items, _ = s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names(items))

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[3], Columns: 2, Persist: true})
	require.NoError(t, err)
	items, _ = s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "D", "C", "E", "F"}, names(items))

	col, err := s.Collapse(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, 2, col.Restored)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names(col.Members))

	again, err := s.Collapse(ctx, "team")
	require.NoError(t, err)
	assert.Zero(t, again.Restored)
}

func TestReflow_SecondReflowStartsFromSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D")

	_, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 2, Persist: true})
	require.NoError(t, err)
	items, _ := s.List(ctx, "team", order.SortManual)
	require.Equal(t, []string{"B", "A", "C", "D"}, names(items))

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[3], Columns: 2, Persist: true})
	require.NoError(t, err)
	items, _ = s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "D", "C"}, names(items))

	_, err = s.Collapse(ctx, "team")
	require.NoError(t, err)
	items, _ = s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C", "D"}, names(items))
}

func TestReflow_IndexFollowsDisplayedOrderAfterSavedReflow(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D", "E", "F")

	_, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 3, Persist: true})
	require.NoError(t, err)
	items, _ := s.List(ctx, "team", order.SortManual)
	require.Equal(t, []string{"B", "A", "C", "D", "E", "F"}, names(items))

	res, err := s.Reflow(ctx, "team", ReflowRequest{Index: 0, Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, ids[1], res.ExpandedID, "index 0 is B on screen")

	res, err = s.Reflow(ctx, "team", ReflowRequest{Index: 4, Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, ids[4], res.ExpandedID)
	assert.Equal(t, []string{"A", "B", "C", "E", "D", "F"}, names(res.Members))
}

func TestMove_FailedCommitKeepsReflowSnapshot(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{Backend: store.NewMemory()}
	s := newTestService(t, fb)
	ids := seed(t, s, "A", "B", "C")

	_, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 3, Persist: true})
	require.NoError(t, err)

	fb.failRanks = true
	_, err = s.Move(ctx, "team", ids[2], order.Up)
	require.Error(t, err)
	fb.failRanks = false

	snap, err := fb.ListMeta(ctx, "team", SnapshotKey)
	require.NoError(t, err)
	assert.Len(t, snap, 3)

	res, err := s.Collapse(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(res.Members))
}

func TestReflow_FailedCommitWritesNoSnapshot(t *testing.T) {
	ctx := context.Background()
	fb := &flakyBackend{Backend: store.NewMemory()}
	s := newTestService(t, fb)
	ids := seed(t, s, "A", "B", "C")
	_, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)

	fb.failRanks = true
	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 3, Persist: true})
	require.Error(t, err)
	fb.failRanks = false

	snap, err := fb.ListMeta(ctx, "team", SnapshotKey)
	require.NoError(t, err)
	assert.Empty(t, snap)
	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C"}, names(items))
}

func TestReflow_ByIndexAndErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "A", "B", "C")

	res, err := s.Reflow(ctx, "team", ReflowRequest{Index: 2, Columns: 2})
	require.NoError(t, err)
	assert.Equal(t, "C", res.Members[2].Name)

	_, err = s.Reflow(ctx, "team", ReflowRequest{Index: 7, Columns: 2})
	assert.True(t, model.IsValidation(err))

	_, err = s.Reflow(ctx, "team", ReflowRequest{Index: 0, Columns: 0})
	assert.True(t, model.IsValidation(err))

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: "member-missing", Columns: 2})
	assert.True(t, model.IsNotFound(err))
}

func TestMove_ClearsReflowSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C")

	_, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 3, Persist: true})
	require.NoError(t, err)
	_, err = s.Move(ctx, "team", ids[2], order.Up)
	require.NoError(t, err)

	res, err := s.Collapse(ctx, "team")
	require.NoError(t, err)
	assert.Zero(t, res.Restored)
	assert.Equal(t, []string{"B", "C", "A"}, names(res.Members))
}

func TestCollapse_ReconcilesMembersCreatedAfterReflow(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C")

	_, err := s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 2, Persist: true})
	require.NoError(t, err)
	seed(t, s, "D")

	res, err := s.Collapse(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, names(res.Members))
	assert.False(t, order.NeedsReconcile(res.Members))
}

func TestImport_OverwriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "A", "B", "C")
	ids := seed(t, s, "D")
	_, err := s.Move(ctx, "team", ids[0], order.Up)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := s.Export(ctx, "team", &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	before, _ := s.List(ctx, "team", order.SortManual)

	sum, err := s.Import(ctx, "team", &buf, ImportOverwrite)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Collection: "team", Mode: ImportOverwrite, Inserted: 4, Deleted: 4}, sum)

	after, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, names(before), names(after))
	assert.Equal(t, ranks(before), ranks(after))
	assert.NotEqual(t, before[0].ID, after[0].ID)
}

func TestImport_WrongHeaderInsertsNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "A", "B")

	in := "Name,Title,Rank,Image,Bio,Order\nX,Y,Z,,,1\n"
	_, err := s.Import(ctx, "team", strings.NewReader(in), ImportOverwrite)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B"}, names(items))
}

func TestImport_AddAppendsAndCountsSkipped(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	seed(t, s, "A")

	in := "Name,Job Title,Rank,Image URL,Bio,Order\nB,Dev,,,,\ntoo,short\nC,Ops,,,,oops\n"
	sum, err := s.Import(ctx, "team", strings.NewReader(in), "")
	require.NoError(t, err)
	assert.Equal(t, ImportAdd, sum.Mode)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Deleted)

	items, _ := s.List(ctx, "team", order.SortManual)
	assert.Equal(t, []string{"A", "B", "C"}, names(items))
	assert.Equal(t, []int{1, 2, 3}, ranks(items))
}

func TestImport_BadMode(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.Import(context.Background(), "team", strings.NewReader(""), "merge")
	assert.True(t, model.IsValidation(err))
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	_, err := s.Create(ctx, "team", MemberInput{Name: "  "})
	assert.True(t, model.IsValidation(err))
	_, err = s.Create(ctx, "team", MemberInput{Name: "A", Image: &model.ImagePlacement{Fit: "stretch"}})
	assert.True(t, model.IsValidation(err))

	m, err := s.Create(ctx, "team", MemberInput{Name: "Ada", JobTitle: "Engineer"})
	require.NoError(t, err)
	assert.Equal(t, model.RankUnset, m.Rank)
	assert.Equal(t, model.DefaultImagePlacement(), m.Image)

	bio := "**First** programmer."
	img := model.ImagePlacement{Fit: model.ImageFitContain, X: 4, Y: -2, Scale: 1.5}
	m, err = s.Update(ctx, "team", m.ID, MemberPatch{Bio: &bio, Image: &img})
	require.NoError(t, err)
	assert.Equal(t, bio, m.Bio)
	assert.Equal(t, img, m.Image)
	assert.Equal(t, "Engineer", m.JobTitle)

	bad := model.ImagePlacement{Scale: 3}
	_, err = s.Update(ctx, "team", m.ID, MemberPatch{Image: &bad})
	assert.True(t, model.IsValidation(err))
	_, err = s.Update(ctx, "team", m.ID, MemberPatch{})
	assert.True(t, model.IsValidation(err))

	got, err := s.Get(ctx, "team", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	require.NoError(t, s.Delete(ctx, "team", m.ID))
	assert.True(t, model.IsNotFound(s.Delete(ctx, "team", m.ID)))
	_, err = s.Get(ctx, "team", m.ID)
	assert.True(t, model.IsNotFound(err))
}

func TestDelete_LeavesGap(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C")
	_, _ = s.List(ctx, "team", order.SortManual)

	require.NoError(t, s.Delete(ctx, "team", ids[1]))
	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ranks(items))

	res, err := s.Move(ctx, "team", ids[2], order.Up)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, names(res.Members))
}

func TestReconcile_ReportsChanges(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemory()
	s := newTestService(t, b)
	ids := seed(t, s, "A", "B", "C")
	require.NoError(t, b.SetRanks(ctx, "team", map[string]int{ids[0]: 2, ids[1]: 2, ids[2]: 2}))

	res, err := s.Reconcile(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Changed)
	assert.Equal(t, []int{2, 3, 4}, ranks(res.Members))

	res, err = s.Reconcile(ctx, "team")
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
}

func TestConcurrentMovesKeepRanksUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C", "D", "E", "F", "G", "H")
	_, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				dir := order.Up
				if (w+i)%2 == 0 {
					dir = order.Down
				}
				_, err := s.Move(ctx, "team", ids[(w*3+i)%len(ids)], dir)
				assert.NoError(t, err)
				_, err = s.List(ctx, "team", order.SortManual)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	items, err := s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	require.Len(t, items, len(ids))
	assert.False(t, order.NeedsReconcile(items))
	seen := map[int]bool{}
	for _, m := range items {
		assert.False(t, seen[m.Rank], "duplicate rank %d", m.Rank)
		seen[m.Rank] = true
	}
}

func TestWatch_ReceivesMutationEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	var mu sync.Mutex
	var ops []string
	cancel := s.Watch(func(ev Event) {
		mu.Lock()
		ops = append(ops, ev.Op)
		mu.Unlock()
	})
	ids := seed(t, s, "A", "B")
	_, err := s.Move(ctx, "team", ids[1], order.Up)
	require.NoError(t, err)
	cancel()
	seed(t, s, "C")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"create", "create", "reconcile", "move"}, ops)
}

func TestDoctor_SeesStoredStateBeforeRepair(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	ids := seed(t, s, "A", "B", "C")

	rep, err := s.Doctor(ctx, "team")
	require.NoError(t, err)
	assert.Len(t, rep.Issues, 3)
	assert.False(t, rep.HasErrors())

	_, err = s.List(ctx, "team", order.SortManual)
	require.NoError(t, err)
	rep, err = s.Doctor(ctx, "team")
	require.NoError(t, err)
	assert.Empty(t, rep.Issues)

	_, err = s.Reflow(ctx, "team", ReflowRequest{ID: ids[1], Columns: 2, Persist: true})
	require.NoError(t, err)
	seed(t, s, "D")
	rep, err = s.Doctor(ctx, "team")
	require.NoError(t, err)
	codes := []string{}
	for _, it := range rep.Issues {
		codes = append(codes, it.Code)
	}
	assert.ElementsMatch(t, []string{"rank_unset", "snapshot_missing_member"}, codes)

	_, err = s.Doctor(ctx, "Bad Name")
	assert.True(t, model.IsValidation(err))
}

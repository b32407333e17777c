package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"todo_backend/internal/domain"
	"todo_backend/internal/repository"
)

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) TodosChanged(ctx context.Context) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// newTestService returns a service over an in-memory store whose clock
// advances one millisecond per reading.
func newTestService(t *testing.T) (*TodoService, *repository.MemoryTodoRepository, *countingNotifier) {
	t.Helper()
	store := repository.NewMemoryTodoRepository()
	svc := NewTodoService(store, nil)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	svc.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	})
	n := &countingNotifier{}
	svc.AddNotifier(n)
	return svc, store, n
}

func mustCreate(t *testing.T, svc *TodoService, in domain.NewTodo) string {
	t.Helper()
	id, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Title, err)
	}
	return id
}

func titles(list []domain.Todo) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Title
	}
	return out
}

func TestCreateDefaults(t *testing.T) {
	svc, _, n := newTestService(t)
	ctx := context.Background()

	id := mustCreate(t, svc, domain.NewTodo{Title: "  Buy milk  "})
	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Buy milk" {
		t.Fatalf("title = %q; want trimmed", got.Title)
	}
	if got.Completed {
		t.Fatalf("new todo should not be completed")
	}
	if got.UpdatedAt != nil {
		t.Fatalf("updatedAt should be nil on create, got %v", got.UpdatedAt)
	}
	if got.Description != "" || got.DueDate != nil {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.Order != domain.NowMillis(got.CreatedAt) {
		t.Fatalf("order = %v; want createdAt millis %v", got.Order, domain.NowMillis(got.CreatedAt))
	}
	if n.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", n.count())
	}
}

func TestCreateIDsAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := mustCreate(t, svc, domain.NewTodo{Title: "item"})
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	svc, store, n := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"", "   "} {
		_, err := svc.Create(ctx, domain.NewTodo{Title: title})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Create(%q) err = %v; want validation error", title, err)
		}
	}
	all, _ := store.ScanAll(ctx)
	if len(all) != 0 {
		t.Fatalf("nothing should be inserted, got %d", len(all))
	}
	if n.count() != 0 {
		t.Fatalf("failed creates must not notify")
	}
}

func TestListTodosSortedByOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	orders := []float64{5, -1, 3.5, 0, 100, 3.5}
	for _, o := range orders {
		o := o
		mustCreate(t, svc, domain.NewTodo{Title: "t", Order: &o})
	}
	list, err := svc.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != len(orders) {
		t.Fatalf("got %d todos; want %d", len(list), len(orders))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Order > list[i].Order {
			t.Fatalf("list not sorted at %d: %v > %v", i, list[i-1].Order, list[i].Order)
		}
	}
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, domain.NewTodo{Title: "Buy milk"})

	done := true
	ok, err := svc.Update(ctx, id, domain.TodoPatch{Completed: &done})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, _ := svc.Get(ctx, id)
	if !got.Completed {
		t.Fatalf("expected completed")
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updatedAt should be stamped after createdAt, got %v", got.UpdatedAt)
	}
}

func TestUpdateIgnoresCallerUpdatedAt(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, domain.NewTodo{Title: "x"})

	past := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	title := "y"
	if _, err := svc.Update(ctx, id, domain.TodoPatch{Title: &title, UpdatedAt: &past}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.UpdatedAt == nil || got.UpdatedAt.Equal(past) {
		t.Fatalf("server must override updatedAt, got %v", got.UpdatedAt)
	}
}

func TestUpdateDueDateTriState(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	due := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	id := mustCreate(t, svc, domain.NewTodo{Title: "x", DueDate: &due})

	desc := "unchanged due"
	if _, err := svc.Update(ctx, id, domain.TodoPatch{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("absent dueDate must leave value, got %v", got.DueDate)
	}

	if _, err := svc.Update(ctx, id, domain.TodoPatch{DueDate: domain.OptionalTime{Set: true}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = svc.Get(ctx, id)
	if got.DueDate != nil {
		t.Fatalf("null dueDate must clear, got %v", got.DueDate)
	}
}

func TestUpdateRejectsEmptyTitle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, domain.NewTodo{Title: "x"})

	blank := "  "
	if _, err := svc.Update(ctx, id, domain.TodoPatch{Title: &blank}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.Title != "x" || got.UpdatedAt != nil {
		t.Fatalf("rejected patch must have no effect: %+v", got)
	}
}

func TestUpdateMissingIDIsNoop(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, domain.NewTodo{Title: "keep"})

	done := true
	ok, err := svc.Update(ctx, "does-not-exist", domain.TodoPatch{Completed: &done})
	if err != nil || !ok {
		t.Fatalf("update on missing id: ok=%v err=%v; want success", ok, err)
	}
	all, _ := store.ScanAll(ctx)
	if len(all) != 1 || all[0].Completed || all[0].UpdatedAt != nil {
		t.Fatalf("store must be unchanged: %+v", all)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, domain.NewTodo{Title: "x"})

	for i := 0; i < 2; i++ {
		ok, err := svc.Delete(ctx, id)
		if err != nil || !ok {
			t.Fatalf("delete #%d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if _, err := svc.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestReorderSkipsDeletedIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	live := mustCreate(t, svc, domain.NewTodo{Title: "live"})
	gone := mustCreate(t, svc, domain.NewTodo{Title: "gone"})
	if _, err := svc.Delete(ctx, gone); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ok, err := svc.Reorder(ctx, []domain.ReorderItem{{ID: gone, Order: 1}, {ID: live, Order: 42}})
	if err != nil || !ok {
		t.Fatalf("reorder: ok=%v err=%v", ok, err)
	}
	got, _ := svc.Get(ctx, live)
	if got.Order != 42 {
		t.Fatalf("live order = %v; want 42", got.Order)
	}
	if got.UpdatedAt == nil {
		t.Fatalf("reorder must stamp updatedAt")
	}
}

func TestReorderChangesListOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, domain.NewTodo{Title: "A"})
	b := mustCreate(t, svc, domain.NewTodo{Title: "B"})

	if _, err := svc.Reorder(ctx, []domain.ReorderItem{{ID: a, Order: 5}, {ID: b, Order: 1}}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	list, _ := svc.ListTodos(ctx)
	if got := titles(list); len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Fatalf("order = %v; want [B A]", got)
	}
}

func TestReorderRejectsMissingIDWithoutApplying(t *testing.T) {
	svc, _, n := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, domain.NewTodo{Title: "A"})
	before := n.count()

	_, err := svc.Reorder(ctx, []domain.ReorderItem{{ID: a, Order: 9}, {ID: "", Order: 1}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := svc.Get(ctx, a)
	if got.Order == 9 {
		t.Fatalf("invalid batch must not be applied")
	}
	if n.count() != before {
		t.Fatalf("invalid batch must not notify")
	}
}

// flakyStore fails Patch for one id and delegates everything else.
type flakyStore struct {
	*repository.MemoryTodoRepository
	failID string
}

func (s *flakyStore) Patch(ctx context.Context, id string, p domain.TodoPatch) error {
	if id == s.failID {
		return errors.New("connection reset")
	}
	return s.MemoryTodoRepository.Patch(ctx, id, p)
}

func TestReorderKeepsAppliedEntriesOnFailure(t *testing.T) {
	mem := repository.NewMemoryTodoRepository()
	store := &flakyStore{MemoryTodoRepository: mem}
	svc := NewTodoService(store, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, domain.NewTodo{Title: "A"})
	b := mustCreate(t, svc, domain.NewTodo{Title: "B"})
	c := mustCreate(t, svc, domain.NewTodo{Title: "C"})
	store.failID = b

	ok, err := svc.Reorder(ctx, []domain.ReorderItem{{ID: a, Order: 3}, {ID: b, Order: 2}, {ID: c, Order: 1}})
	if ok || err == nil {
		t.Fatalf("expected partial failure, got ok=%v err=%v", ok, err)
	}
	gotA, _ := svc.Get(ctx, a)
	gotC, _ := svc.Get(ctx, c)
	if gotA.Order != 3 || gotC.Order != 1 {
		t.Fatalf("entries around the failure must apply: A=%v C=%v", gotA.Order, gotC.Order)
	}
}

func TestScenarioBuyMilkWalkDog(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	milk := mustCreate(t, svc, domain.NewTodo{Title: "Buy milk"})
	dog := mustCreate(t, svc, domain.NewTodo{Title: "Walk dog"})

	list, _ := svc.ListTodos(ctx)
	if got := titles(list); len(got) != 2 || got[0] != "Buy milk" || got[1] != "Walk dog" {
		t.Fatalf("initial list = %v", got)
	}

	done := true
	if _, err := svc.Update(ctx, milk, domain.TodoPatch{Completed: &done}); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = svc.ListTodos(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(list))
	}
	if !list[0].Completed || list[0].UpdatedAt == nil {
		t.Fatalf("Buy milk should be completed with updatedAt: %+v", list[0])
	}

	if _, err := svc.Delete(ctx, dog); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = svc.ListTodos(ctx)
	if got := titles(list); len(got) != 1 || got[0] != "Buy milk" {
		t.Fatalf("final list = %v", got)
	}
}

func TestOverdue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreate(t, svc, domain.NewTodo{Title: "late", DueDate: &past})
	mustCreate(t, svc, domain.NewTodo{Title: "later", DueDate: &future})
	mustCreate(t, svc, domain.NewTodo{Title: "undated"})
	doneID := mustCreate(t, svc, domain.NewTodo{Title: "late but done", DueDate: &past})
	done := true
	if _, err := svc.Update(ctx, doneID, domain.TodoPatch{Completed: &done}); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := svc.Overdue(ctx)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if got := titles(list); len(got) != 1 || got[0] != "late" {
		t.Fatalf("overdue = %v; want [late]", got)
	}
}

func TestMutationsNotify(t *testing.T) {
	svc, _, n := newTestService(t)
	ctx := context.Background()

	id := mustCreate(t, svc, domain.NewTodo{Title: "x"})
	done := true
	_, _ = svc.Update(ctx, id, domain.TodoPatch{Completed: &done})
	_, _ = svc.Reorder(ctx, []domain.ReorderItem{{ID: id, Order: 1}})
	_, _ = svc.Delete(ctx, id)

	if n.count() != 4 {
		t.Fatalf("expected 4 notifications, got %d", n.count())
	}
}

// memCache is a ListCache kept in memory.
type memCache struct {
	mu   sync.Mutex
	list []domain.Todo
}

func (c *memCache) GetList(ctx context.Context) ([]domain.Todo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.list == nil {
		return nil, nil
	}
	return append([]domain.Todo(nil), c.list...), nil
}

func (c *memCache) SetList(ctx context.Context, list []domain.Todo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(make([]domain.Todo, 0, len(list)), list...)
	return nil
}

func (c *memCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	return nil
}

func (c *memCache) cached() []domain.Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list
}

// gatedStore holds the next ScanAll open after it has read the store, so a
// write can land while that read is in flight.
type gatedStore struct {
	*repository.MemoryTodoRepository
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
}

func (s *gatedStore) ScanAll(ctx context.Context) ([]domain.Todo, error) {
	list, err := s.MemoryTodoRepository.ScanAll(ctx)
	s.mu.Lock()
	hold := s.armed
	s.armed = false
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if hold {
		close(entered)
		<-release
	}
	return list, err
}

// liveNotifier reads the live query on every change, the way the hub does.
type liveNotifier struct {
	svc  *TodoService
	mu   sync.Mutex
	seen [][]domain.Todo
}

func (n *liveNotifier) TodosChanged(ctx context.Context) {
	list, err := n.svc.LiveTodos(ctx)
	if err != nil {
		return
	}
	n.mu.Lock()
	n.seen = append(n.seen, list)
	n.mu.Unlock()
}

func (n *liveNotifier) last() []domain.Todo {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.seen) == 0 {
		return nil
	}
	return n.seen[len(n.seen)-1]
}

func TestListTodosUsesCache(t *testing.T) {
	store := repository.NewMemoryTodoRepository()
	c := &memCache{}
	svc := NewTodoService(store, c)
	ctx := context.Background()
	mustCreate(t, svc, domain.NewTodo{Title: "A"})

	if _, err := svc.ListTodos(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(c.cached()); len(got) != 1 || got[0] != "A" {
		t.Fatalf("cache after read = %v; want [A]", got)
	}

	mustCreate(t, svc, domain.NewTodo{Title: "B"})
	if c.cached() != nil {
		t.Fatalf("write must invalidate the cached list")
	}
	list, err := svc.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(list); len(got) != 2 {
		t.Fatalf("list after write = %v; want 2 todos", got)
	}
}

func TestWriteDuringCachedReadStaysFresh(t *testing.T) {
	store := &gatedStore{MemoryTodoRepository: repository.NewMemoryTodoRepository()}
	c := &memCache{}
	svc := NewTodoService(store, c)
	live := &liveNotifier{svc: svc}
	svc.AddNotifier(live)
	ctx := context.Background()

	store.arm()
	staleDone := make(chan []domain.Todo, 1)
	go func() {
		list, err := svc.ListTodos(ctx)
		if err != nil {
			t.Errorf("stale list: %v", err)
		}
		staleDone <- list
	}()
	<-store.entered

	mustCreate(t, svc, domain.NewTodo{Title: "new"})

	if got := titles(live.last()); len(got) != 1 || got[0] != "new" {
		t.Fatalf("live query after create = %v; want [new]", got)
	}
	list, err := svc.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := titles(list); len(got) != 1 {
		t.Fatalf("read after create = %v; want [new]", got)
	}

	close(store.release)
	if stale := <-staleDone; len(stale) != 0 {
		t.Fatalf("read started before the write should see 0 todos, got %d", len(stale))
	}

	if got := titles(c.cached()); len(got) != 1 || got[0] != "new" {
		t.Fatalf("cache after racing read = %v; want [new]", got)
	}
	list, _ = svc.ListTodos(ctx)
	if got := titles(list); len(got) != 1 || got[0] != "new" {
		t.Fatalf("later read = %v; want [new]", got)
	}
}

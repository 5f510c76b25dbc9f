// Package cache keeps the local view of the expense collection in step with
// the expense service.
//
// Every mutation goes through the service; on success the whole list is
// reloaded rather than patched locally, and local ids are renumbered 1..N in
// the order the service returned. A failed call never changes the list.
package cache

import (
	"context"
	"time"

	"expensectl/internal/core"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

// Result is the outcome of a cache operation.
type Result struct {
	Op     core.Operation
	Status int // status answered by the service, 0 when none was received

	// Applied reports that the service accepted the call.
	Applied bool
	// Synced reports that the list was replaced by a fresh load.
	Synced bool

	Err error
}

// OK reports whether the call was accepted and the list reloaded.
func (r Result) OK() bool {
	return r.Applied && r.Synced
}

// ExpenseCache is the in-memory mirror of the service's expense collection.
// It is not safe for concurrent use.
type ExpenseCache struct {
	svc   ports.ExpenseService
	items []core.Expense

	logger    *log.Logger
	snapshots ports.SnapshotStore
	journal   ports.MutationJournal
	publisher ports.ChangePublisher
	now       func() time.Time
}

// Option configures an ExpenseCache.
type Option func(*ExpenseCache)

func WithLogger(l *log.Logger) Option {
	return func(c *ExpenseCache) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentCache)
		}
	}
}

// WithSnapshots saves every successfully loaded list.
func WithSnapshots(s ports.SnapshotStore) Option {
	return func(c *ExpenseCache) { c.snapshots = s }
}

// WithJournal records every attempted mutation.
func WithJournal(j ports.MutationJournal) Option {
	return func(c *ExpenseCache) { c.journal = j }
}

// WithPublisher announces every mutation the service accepted.
func WithPublisher(p ports.ChangePublisher) Option {
	return func(c *ExpenseCache) { c.publisher = p }
}

// New returns an empty cache backed by svc.
func New(svc ports.ExpenseService, opts ...Option) *ExpenseCache {
	c := &ExpenseCache{
		svc:    svc,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the list with the service's collection and renumbers it.
// On failure the current list is kept.
func (c *ExpenseCache) Load(ctx context.Context) Result {
	expenses, err := c.svc.ListExpenses(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load expenses, keeping cached list",
			log.FieldStatusCode, core.StatusCode(err),
			log.FieldCount, len(c.items),
			log.FieldError, err)
		return Result{Op: core.OpList, Status: core.StatusCode(err), Err: err}
	}

	c.items = renumber(expenses)
	c.logger.DebugContext(ctx, "Expenses loaded", log.FieldCount, len(c.items))

	if c.snapshots != nil {
		if err := c.snapshots.SaveSnapshot(ctx, c.View()); err != nil {
			c.logger.WarnContext(ctx, "Failed to save snapshot", log.FieldError, err)
		}
	}

	return Result{Op: core.OpList, Status: core.OpList.SuccessStatus(), Applied: true, Synced: true}
}

// Add submits a new expense and reloads on success.
func (c *ExpenseCache) Add(ctx context.Context, e core.NewExpense) Result {
	created, err := c.svc.CreateExpense(ctx, e)
	return c.afterMutation(ctx, core.OpCreate, created.ID, err)
}

// Update sends the changed fields of the expense with server id id and
// reloads on success.
func (c *ExpenseCache) Update(ctx context.Context, id int64, p core.ExpensePatch) Result {
	err := c.svc.UpdateExpense(ctx, id, p)
	return c.afterMutation(ctx, core.OpUpdate, id, err)
}

// Delete removes the expense with server id id and reloads on success.
func (c *ExpenseCache) Delete(ctx context.Context, id int64) Result {
	err := c.svc.DeleteExpense(ctx, id)
	return c.afterMutation(ctx, core.OpDelete, id, err)
}

func (c *ExpenseCache) afterMutation(ctx context.Context, op core.Operation, id int64, err error) Result {
	res := Result{Op: op, Status: core.StatusCode(err), Err: err}
	if err == nil {
		res.Status = op.SuccessStatus()
		res.Applied = true
	}

	m := core.Mutation{Op: op, ExpenseID: id, Status: res.Status, Applied: res.Applied, At: c.now()}
	c.record(ctx, m)

	if !res.Applied {
		c.logger.WarnContext(ctx, "Expense service rejected mutation, cache unchanged",
			log.NewFields().WithOperation(string(op)).WithExpenseID(id).WithError(err).
				WithOutcome(res.Status, false, false).ToSlice()...)
		return res
	}

	c.publish(ctx, m)

	reload := c.Load(ctx)
	res.Synced = reload.Synced
	if !reload.Synced {
		res.Err = reload.Err
	}

	c.logger.InfoContext(ctx, "Expense mutation applied",
		log.NewFields().WithOperation(string(op)).WithExpenseID(id).
			WithOutcome(res.Status, res.Applied, res.Synced).ToSlice()...)
	return res
}

func (c *ExpenseCache) record(ctx context.Context, m core.Mutation) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordMutation(ctx, m); err != nil {
		c.logger.WarnContext(ctx, "Failed to journal mutation", log.FieldOperation, string(m.Op), log.FieldError, err)
	}
}

func (c *ExpenseCache) publish(ctx context.Context, m core.Mutation) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishChange(ctx, m); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish change", log.FieldOperation, string(m.Op), log.FieldError, err)
	}
}

// View returns a copy of the cached list in display order.
func (c *ExpenseCache) View() []core.Expense {
	out := make([]core.Expense, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached expenses.
func (c *ExpenseCache) Len() int {
	return len(c.items)
}

// Resolve maps a display number to the server id of the expense currently
// shown under it.
func (c *ExpenseCache) Resolve(localID int) (int64, bool) {
	if localID < 1 || localID > len(c.items) {
		return 0, false
	}
	return c.items[localID-1].ID, true
}

// renumber assigns local ids 1..N in list order to a fresh copy of expenses.
func renumber(expenses []core.Expense) []core.Expense {
	out := make([]core.Expense, len(expenses))
	for i, e := range expenses {
		e.LocalID = i + 1
		out[i] = e
	}
	return out
}

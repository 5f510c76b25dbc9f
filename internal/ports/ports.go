package ports

import (
	"context"
	"time"

	"expensectl/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseService is the remote collection the cache mirrors. Implementations
	// return *core.StatusError for any status other than the operation's
	// success status.
	ExpenseService interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
		UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) error
		DeleteExpense(ctx context.Context, id int64) error
	}

	// SnapshotStore keeps a copy of the last successfully loaded list.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, expenses []core.Expense) error
	}

	// SnapshotReader returns the last saved list and when it was taken.
	SnapshotReader interface {
		LatestSnapshot(ctx context.Context) ([]core.Expense, time.Time, error)
	}

	// MutationJournal records every attempted change, applied or not.
	MutationJournal interface {
		RecordMutation(ctx context.Context, m core.Mutation) error
	}

	// ChangePublisher announces applied changes to other processes.
	ChangePublisher interface {
		PublishChange(ctx context.Context, m core.Mutation) error
	}

	// Exporter writes a full expense list to an external destination.
	Exporter interface {
		// Export replaces the destination contents and returns a reference to it.
		Export(ctx context.Context, expenses []core.Expense) (ref string, err error)
	}
)

package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fault"
)

// DefaultHistoryLimit is used when Options.HistoryLimit is not positive.
const DefaultHistoryLimit = 1000

var (
	// ErrNested is returned by Run when the context already carries an
	// active transaction.
	ErrNested = &fault.Error{Kind: fault.KindIllegalState, Op: "txn.Run", Msg: "nested transactions are not supported"}
	// ErrNoTransaction is returned by AddOperation outside a transaction.
	ErrNoTransaction = &fault.Error{Kind: fault.KindIllegalState, Op: "txn.AddOperation", Msg: "no active transaction"}
)

// Compensator applies compensations for operations registered without
// their own RollbackFunc.
type Compensator interface {
	Compensate(ctx context.Context, c Compensation) error
}

// Options configures a Manager.
type Options struct {
	Compensator Compensator
	// HistoryLimit bounds the finished-transaction log. When it is exceeded
	// the log is trimmed to its newest half.
	HistoryLimit int
}

// Stats summarises transaction activity.
type Stats struct {
	Total            int           `json:"total_transactions"`
	Committed        int           `json:"committed"`
	RolledBack       int           `json:"rolled_back"`
	Active           int           `json:"active_transactions"`
	RollbackFailures int           `json:"rollback_failures"`
	AverageDuration  time.Duration `json:"average_duration_ns"`
}

type ctxKey struct{}

// Manager runs transactions and keeps a bounded log of finished ones. It is
// safe for concurrent use.
type Manager struct {
	compensator  Compensator
	historyLimit int

	mu               sync.Mutex
	active           map[uuid.UUID]*Transaction
	history          []*Transaction
	total            int
	committed        int
	rolledBack       int
	rollbackFailures int
	finishedTime     time.Duration
}

// New returns a Manager.
func New(opts Options) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Manager{
		compensator:  opts.Compensator,
		historyLimit: opts.HistoryLimit,
		active:       make(map[uuid.UUID]*Transaction),
	}
}

// Run executes fn inside a new transaction. The transaction is available to
// fn through its context. If fn returns an error or panics, every registered
// operation is compensated in reverse order and the error is returned (or
// the panic re-raised).
func (m *Manager) Run(ctx context.Context, metadata map[string]any, fn func(ctx context.Context) error) (err error) {
	if isInTransaction(ctx) {
		return ErrNested
	}

	tx := newTransaction(metadata)
	m.mu.Lock()
	m.total++
	m.active[tx.ID] = tx
	m.mu.Unlock()

	txCtx := ctxlog.With(context.WithValue(ctx, ctxKey{}, tx), "transaction_id", tx.ID)
	logger := ctxlog.FromContext(txCtx)
	logger.Debug("Transaction started.", "metadata", metadata)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Errorf("panic in transaction: %v", r)
		m.rollback(ctx, tx, cause)
		panic(r)
	}()

	if err = fn(txCtx); err != nil {
		m.rollback(ctx, tx, err)
		return err
	}

	tx.finish(Committed, nil, nil)
	m.record(tx)
	logger.Debug("Transaction committed.", "operations", len(tx.Operations()), "duration", tx.Duration())
	return nil
}

// rollback compensates tx's operations in reverse order. It runs on the
// caller's context without the transaction so compensations cannot
// register new operations, and without cancellation so they always run.
func (m *Manager) rollback(ctx context.Context, tx *Transaction, cause error) {
	rbCtx := ctxlog.With(context.WithoutCancel(ctx), "transaction_id", tx.ID)
	logger := ctxlog.FromContext(rbCtx)
	logger.Info("Rolling back transaction.", "cause", cause)

	ops := tx.Operations()
	var failures []error
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if err := compensate(rbCtx, m.compensator, op); err != nil {
			logger.Error("Rollback operation failed; the graph may be inconsistent.",
				"operation_id", op.ID, "operation", op.Type, "compensation", op.Compensation.Kind.String(),
				"entity_id", op.Compensation.EntityID, "integrity", "compromised", "error", err)
			failures = append(failures, fault.Wrap(fault.KindRollbackFailure, "txn.rollback", op.Compensation.EntityID, err))
		}
	}

	tx.finish(RolledBack, cause, failures)
	m.record(tx)
	logger.Info("Transaction rolled back.", "operations", len(ops), "rollback_failures", len(failures))
}

func compensate(ctx context.Context, compensator Compensator, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during rollback: %v", r)
		}
	}()
	if op.Rollback != nil {
		return op.Rollback(ctx, op.Compensation)
	}
	if compensator == nil {
		return fault.IllegalState("txn.rollback", op.ID, "operation has no rollback and no compensator is set")
	}
	return compensator.Compensate(ctx, op.Compensation)
}

func (m *Manager) record(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, tx.ID)
	switch tx.Status() {
	case Committed:
		m.committed++
	case RolledBack:
		m.rolledBack++
	}
	m.rollbackFailures += len(tx.RollbackErrors())
	m.finishedTime += tx.Duration()

	m.history = append(m.history, tx)
	if len(m.history) > m.historyLimit {
		keep := max(m.historyLimit/2, 1)
		m.history = append([]*Transaction(nil), m.history[len(m.history)-keep:]...)
	}
}

// AddOperation registers op with the transaction carried by ctx and
// returns its id.
func (m *Manager) AddOperation(ctx context.Context, op Operation) (uuid.UUID, error) {
	tx, ok := current(ctx)
	if !ok {
		return uuid.Nil, ErrNoTransaction
	}
	return tx.add(op)
}

// Current returns the transaction carried by ctx.
func (m *Manager) Current(ctx context.Context) (*Transaction, bool) {
	return current(ctx)
}

// IsInTransaction reports whether ctx carries an active transaction.
func (m *Manager) IsInTransaction(ctx context.Context) bool {
	return isInTransaction(ctx)
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Total:            m.total,
		Committed:        m.committed,
		RolledBack:       m.rolledBack,
		Active:           len(m.active),
		RollbackFailures: m.rollbackFailures,
	}
	if finished := m.committed + m.rolledBack; finished > 0 {
		st.AverageDuration = m.finishedTime / time.Duration(finished)
	}
	return st
}

// Recent returns up to n of the most recently finished transactions,
// newest last.
func (m *Manager) Recent(n int) []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Summary, 0, n)
	for _, tx := range m.history[len(m.history)-n:] {
		out = append(out, tx.summary())
	}
	return out
}

func current(ctx context.Context) (*Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(ctxKey{}).(*Transaction)
	return tx, ok && tx != nil
}

func isInTransaction(ctx context.Context) bool {
	tx, ok := current(ctx)
	return ok && tx.Status() == Active
}

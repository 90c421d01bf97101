package txn

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
)

// Status is the lifecycle state of a transaction.
type Status int

const (
	Active Status = iota
	Committed
	RolledBack
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// CompensationKind names the reverse action for a mutation.
type CompensationKind int

const (
	// DeleteNode reverses a node creation.
	DeleteNode CompensationKind = iota
	// DeleteRelationship reverses a relationship creation.
	DeleteRelationship
	// RestoreNode reverses a node removal; Relationships holds the incident
	// relationships removed with it.
	RestoreNode
	// RestoreRelationship reverses a relationship removal.
	RestoreRelationship
	// RestoreNodeState reverses a node update.
	RestoreNodeState
)

func (k CompensationKind) String() string {
	switch k {
	case DeleteNode:
		return "delete_node"
	case DeleteRelationship:
		return "delete_relationship"
	case RestoreNode:
		return "restore_node"
	case RestoreRelationship:
		return "restore_relationship"
	case RestoreNodeState:
		return "restore_node_state"
	default:
		return "unknown"
	}
}

// Compensation describes how to undo one mutation.
type Compensation struct {
	Kind     CompensationKind
	EntityID uuid.UUID
	// Node is the state to restore for RestoreNode and RestoreNodeState.
	Node *entity.Node
	// Relationships are restored for RestoreNode and RestoreRelationship.
	Relationships []entity.Relationship
}

// RollbackFunc applies a compensation.
type RollbackFunc func(ctx context.Context, c Compensation) error

// Operation is one compensable step of a transaction.
type Operation struct {
	ID   uuid.UUID
	Type string
	// Data is the forward payload: the entity the step created, changed or
	// removed.
	Data any
	// CommandID links the step to its entry in the command history.
	CommandID    uuid.UUID
	Compensation Compensation
	// Rollback, when nil, falls back to the manager's Compensator.
	Rollback  RollbackFunc
	Timestamp time.Time
}

// Transaction is a group of operations that commit or roll back together.
type Transaction struct {
	ID       uuid.UUID
	Metadata map[string]any
	Start    time.Time

	mu        sync.Mutex
	status    Status
	end       time.Time
	ops       []Operation
	err       error
	rollbacks []error
}

func newTransaction(metadata map[string]any) *Transaction {
	return &Transaction{ID: uuid.New(), Metadata: metadata, Start: time.Now()}
}

// Status returns the current state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Operations returns the registered operations in registration order.
func (t *Transaction) Operations() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Operation(nil), t.ops...)
}

// Err returns the error that caused a rollback.
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// RollbackErrors returns the compensation failures of a rollback.
func (t *Transaction) RollbackErrors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.rollbacks...)
}

// Duration is the time from start to end, or to now while active.
func (t *Transaction) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.end.IsZero() {
		return time.Since(t.Start)
	}
	return t.end.Sub(t.Start)
}

func (t *Transaction) add(op Operation) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Active {
		return uuid.Nil, fault.IllegalState("txn.AddOperation", t.ID, "transaction is %s", t.status)
	}
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now()
	}
	t.ops = append(t.ops, op)
	return op.ID, nil
}

func (t *Transaction) finish(status Status, err error, rollbacks []error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.end = time.Now()
	t.err = err
	t.rollbacks = rollbacks
}

// Summary is a read-only view of a finished transaction.
type Summary struct {
	ID               uuid.UUID      `json:"transaction_id"`
	Status           string         `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Operations       int            `json:"operations"`
	OperationTypes   []string       `json:"operation_types,omitempty"`
	Start            time.Time      `json:"start_time"`
	Duration         time.Duration  `json:"duration_ns"`
	Error            string         `json:"error,omitempty"`
	RollbackFailures int            `json:"rollback_failures,omitempty"`
}

func (t *Transaction) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		ID:               t.ID,
		Status:           t.status.String(),
		Metadata:         t.Metadata,
		Operations:       len(t.ops),
		Start:            t.Start,
		Duration:         t.end.Sub(t.Start),
		RollbackFailures: len(t.rollbacks),
	}
	for _, op := range t.ops {
		s.OperationTypes = append(s.OperationTypes, op.Type)
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

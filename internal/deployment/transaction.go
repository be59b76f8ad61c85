package deployment

import (
	"context"
	"fmt"
)

// Operation represents a single step in a multi-store change
type Operation struct {
	Name string
	Func func(ctx context.Context) error
}

// Compensation undoes a completed operation. A nil Func means the step cannot be undone.
type Compensation struct {
	Name string
	Func func(ctx context.Context) error
}

// Transaction runs operations in order and compensates completed ones in
// reverse order when a later operation fails.
type Transaction struct {
	ID    string
	steps []step
}

type step struct {
	op   Operation
	comp Compensation
}

// NewTransaction starts an empty transaction
func NewTransaction(id string) *Transaction {
	return &Transaction{ID: id}
}

// AddOperation adds an operation with its compensation
func (tx *Transaction) AddOperation(op Operation, comp Compensation) {
	tx.steps = append(tx.steps, step{op: op, comp: comp})
}

// Execute runs all operations in the transaction
func (tx *Transaction) Execute(ctx context.Context) error {
	for i, s := range tx.steps {
		if err := ctx.Err(); err != nil {
			return tx.rollback(i, fmt.Errorf("transaction %s canceled: %w", tx.ID, err))
		}
		if err := s.op.Func(ctx); err != nil {
			return tx.rollback(i, fmt.Errorf("operation %s failed: %w", s.op.Name, err))
		}
	}
	return nil
}

// rollback compensates the first completed steps, newest first
func (tx *Transaction) rollback(completed int, originalErr error) error {
	var rollbackErrors []error
	for i := completed - 1; i >= 0; i-- {
		comp := tx.steps[i].comp
		if comp.Func == nil {
			continue
		}
		// Compensations run even if the caller's context is done
		if err := comp.Func(context.Background()); err != nil {
			rollbackErrors = append(rollbackErrors, fmt.Errorf("compensation %s failed: %w", comp.Name, err))
		}
	}
	if len(rollbackErrors) > 0 {
		return fmt.Errorf("transaction failed: %w (rollback errors: %v)", originalErr, rollbackErrors)
	}
	return originalErr
}

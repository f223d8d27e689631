package record

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing contract or record id.
	ErrNotFound = errors.New("record: not found")
	// ErrContractTaken signals a contract value already held by a
	// different record. Contract comparison is case-insensitive.
	ErrContractTaken = errors.New("record: contract already exists")
	// ErrInvalidInput signals a record missing its required fields.
	ErrInvalidInput = errors.New("record: contract and nom are required")
)

// Repository handles data access for contract records. Implementations
// must enforce case-insensitive contract uniqueness on insert and
// update.
type Repository interface {
	FindByContract(ctx context.Context, contract string) (Record, error)
	FindByID(ctx context.Context, id int64) (Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, id int64) error
}

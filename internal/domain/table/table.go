package table

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested table does not exist.
	ErrNotFound = errors.New("table not found")
	// ErrInvalidInput is returned for malformed table numbers, capacities or
	// occupancy values.
	ErrInvalidInput = errors.New("invalid table")
	// ErrDuplicateNumber is returned when another table already uses the number.
	ErrDuplicateNumber = errors.New("table number already exists")
	// ErrInUse is returned when deleting a table that an open order references.
	ErrInUse = errors.New("table is referenced by an open order")
)

// Occupancy is a table's current availability for seating.
type Occupancy string

const (
	Available Occupancy = "AVAILABLE"
	Occupied  Occupancy = "OCCUPIED"
	Reserved  Occupancy = "RESERVED"
	Cleaning  Occupancy = "CLEANING"
)

// ParseOccupancy converts a wire value into an Occupancy.
func ParseOccupancy(s string) (Occupancy, error) {
	switch o := Occupancy(s); o {
	case Available, Occupied, Reserved, Cleaning:
		return o, nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown occupancy %q", s)
}

// Table is a physical table in the dining room.
type Table struct {
	ID        string
	Number    string
	Capacity  int
	Occupancy Occupancy
	QRCode    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for the table registry.
type Repository interface {
	List(ctx context.Context) ([]Table, error)
	ListByOccupancy(ctx context.Context, o Occupancy) ([]Table, error)
	// FindAvailable returns AVAILABLE tables seating at least capacity guests.
	FindAvailable(ctx context.Context, capacity int) ([]Table, error)
	GetByID(ctx context.Context, id string) (*Table, error)
	GetByNumber(ctx context.Context, number string) (*Table, error)
	GetByQRCode(ctx context.Context, code string) (*Table, error)
	Create(ctx context.Context, t *Table) error
	Update(ctx context.Context, t *Table) error
	SetOccupancy(ctx context.Context, id string, o Occupancy, at time.Time) (*Table, error)
	// Delete fails with ErrInUse while a non-terminal order references the table.
	Delete(ctx context.Context, id string) error
}

package table

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// DefaultQRBaseURL is the ordering page a table's QR code points to when no
// base URL is configured.
const DefaultQRBaseURL = "http://localhost:3000/order?table="

// ServiceConfig holds non-dependency configuration for the Service.
type ServiceConfig struct {
	// QRBaseURL is prefixed to the table number to build the QR code payload.
	QRBaseURL string
}

// Service manages the table registry. Order-driven occupancy changes do not
// go through here; the ticket engine writes them inside its own transaction.
type Service struct {
	tables    Repository
	qrBaseURL string
	now       func() time.Time
}

// NewService creates a table Service backed by the given repository.
func NewService(cfg ServiceConfig, tables Repository) *Service {
	base := cfg.QRBaseURL
	if base == "" {
		base = DefaultQRBaseURL
	}
	return &Service{tables: tables, qrBaseURL: base, now: time.Now}
}

// QRCodeData returns the payload encoded into the QR code for a table number.
func (s *Service) QRCodeData(number string) string {
	return s.qrBaseURL + number
}

// Create registers a new AVAILABLE table.
func (s *Service) Create(ctx context.Context, number string, capacity int) (*Table, error) {
	if err := validate(number, capacity); err != nil {
		return nil, err
	}
	now := s.now()
	t := &Table{
		ID:        uuid.New().String(),
		Number:    number,
		Capacity:  capacity,
		Occupancy: Available,
		QRCode:    s.QRCodeData(number),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tables.Create(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "create table %s", number)
	}
	return t, nil
}

// Update changes number, capacity and occupancy of an existing table. The QR
// code is regenerated when the number changes.
func (s *Service) Update(ctx context.Context, id, number string, capacity int, o Occupancy) (*Table, error) {
	if err := validate(number, capacity); err != nil {
		return nil, err
	}
	if _, err := ParseOccupancy(string(o)); err != nil {
		return nil, err
	}
	t, err := s.tables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Number != number {
		t.QRCode = s.QRCodeData(number)
	}
	t.Number = number
	t.Capacity = capacity
	t.Occupancy = o
	t.UpdatedAt = s.now()
	if err := s.tables.Update(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "update table %s", id)
	}
	return t, nil
}

// SetOccupancy is the administrative override of a table's occupancy.
func (s *Service) SetOccupancy(ctx context.Context, id string, o Occupancy) (*Table, error) {
	if _, err := ParseOccupancy(string(o)); err != nil {
		return nil, err
	}
	return s.tables.SetOccupancy(ctx, id, o, s.now())
}

// Delete removes a table no open order refers to.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tables.Delete(ctx, id)
}

func validate(number string, capacity int) error {
	if n := utf8.RuneCountInString(number); n == 0 || n > 10 {
		return errors.Wrap(ErrInvalidInput, "table number must be 1 to 10 characters")
	}
	if capacity < 1 {
		return errors.Wrap(ErrInvalidInput, "capacity must be at least 1")
	}
	return nil
}

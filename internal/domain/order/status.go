package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusConfirmed     Status = "CONFIRMED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusReady         Status = "READY"
	StatusServed        Status = "SERVED"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
)

// sequence is the forward path an order walks through. CANCELLED sits
// outside it.
var sequence = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInPreparation,
	StatusReady,
	StatusServed,
	StatusCompleted,
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == StatusCancelled || st.rank() >= 0 {
		return st, nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "order status %q", s)
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether s is a non-terminal status.
func (s Status) Active() bool {
	return !s.IsTerminal()
}

// InKitchenQueue reports whether an order in s needs kitchen attention.
func (s Status) InKitchenQueue() bool {
	return s == StatusConfirmed || s == StatusInPreparation
}

// rank is the position of s on the forward path, or -1 for CANCELLED and
// unknown values.
func (s Status) rank() int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// TransitionPolicy decides which status changes the engine accepts.
//
// The lenient policy (Strict=false) accepts any forward jump, so staff can
// confirm and complete an order in one step. The strict policy only accepts
// the next status on the forward path. Both reject leaving a terminal status,
// moving backwards, and accept CANCELLED from every non-terminal status.
// Re-applying the current status is accepted as a no-op transition.
type TransitionPolicy struct {
	Strict bool
}

// Check returns a *TransitionError when the policy forbids moving from one
// status to another.
func (p TransitionPolicy) Check(from, to Status) error {
	if from.IsTerminal() {
		return &TransitionError{From: from, To: to, Reason: "order is closed"}
	}
	if to == StatusCancelled || to == from {
		return nil
	}
	fr, tr := from.rank(), to.rank()
	switch {
	case tr < fr:
		return &TransitionError{From: from, To: to, Reason: "status cannot move backwards"}
	case p.Strict && tr != fr+1:
		return &TransitionError{From: from, To: to, Reason: fmt.Sprintf("next status must be %s", sequence[fr+1])}
	}
	return nil
}

// ItemStatus is the kitchen state of a single order line.
type ItemStatus string

const (
	ItemOrdered       ItemStatus = "ORDERED"
	ItemInPreparation ItemStatus = "IN_PREPARATION"
	ItemReady         ItemStatus = "READY"
	ItemServed        ItemStatus = "SERVED"
)

// ParseItemStatus converts a wire value into an ItemStatus. Item statuses have
// no ordering constraint; kitchen staff may set any of them at any time.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch st := ItemStatus(s); st {
	case ItemOrdered, ItemInPreparation, ItemReady, ItemServed:
		return st, nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "item status %q", s)
}

package order

import "fmt"

// Status is an order lifecycle state. States are classified by whether the
// order is holding its stock reservation: moving between the two classes is
// what triggers ledger effects, not the individual states themselves.
type Status string

const (
	StatusPending         Status = "pending"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusPickupScheduled Status = "pickup_scheduled"
	StatusReturned        Status = "returned"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Holds reports whether an order in this state keeps its stock reserved.
func (s Status) Holds() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusPickupScheduled, StatusReturned:
		return true
	default:
		return false
	}
}

// Terminal reports whether this state ends the order's lifecycle. Terminal
// states have released their reservation; re-entering one is a no-op on the
// ledger.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusPickupScheduled,
		StatusReturned, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// InvalidTransitionError indicates the active transition policy rejected a
// status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// TransitionPolicy decides which status changes staff may perform. The
// reference workflow deliberately allows jumping between holding states in
// any direction, so strictness is a deployment choice rather than a fixed
// rule.
type TransitionPolicy interface {
	Allowed(from, to Status) bool
}

// PermissivePolicy allows any transition between valid states, preserving
// the flexibility manual workflows rely on (e.g. pending -> returned when a
// customer refuses the bag at the door).
type PermissivePolicy struct{}

func (PermissivePolicy) Allowed(from, to Status) bool {
	return from.Valid() && to.Valid()
}

// StrictPolicy restricts transitions to the forward delivery flow plus
// cancellation. Terminal states cannot be left, so completed or cancelled
// orders are never silently re-reserved.
type StrictPolicy struct{}

var strictNext = map[Status]map[Status]bool{
	StatusPending:         {StatusShipped: true, StatusCancelled: true},
	StatusShipped:         {StatusDelivered: true, StatusReturned: true, StatusCancelled: true},
	StatusDelivered:       {StatusPickupScheduled: true, StatusReturned: true, StatusCompleted: true},
	StatusPickupScheduled: {StatusReturned: true, StatusCompleted: true},
	StatusReturned:        {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:       {},
	StatusCancelled:       {},
}

func (StrictPolicy) Allowed(from, to Status) bool {
	if from == to {
		return true
	}
	return strictNext[from][to]
}

package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Holds(t *testing.T) {
	holding := []Status{StatusPending, StatusShipped, StatusDelivered, StatusPickupScheduled, StatusReturned}
	for _, s := range holding {
		assert.True(t, s.Holds(), "%s should hold stock", s)
	}

	released := []Status{StatusCompleted, StatusCancelled}
	for _, s := range released {
		assert.False(t, s.Holds(), "%s should not hold stock", s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusReturned.Terminal())
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("refunded").Valid())
	assert.False(t, Status("").Valid())
}

func TestPermissivePolicy(t *testing.T) {
	p := PermissivePolicy{}

	// Any pair of valid states goes, including backwards jumps the manual
	// workflow relies on.
	assert.True(t, p.Allowed(StatusPending, StatusReturned))
	assert.True(t, p.Allowed(StatusCancelled, StatusPending))
	assert.True(t, p.Allowed(StatusCompleted, StatusCompleted))

	assert.False(t, p.Allowed(StatusPending, Status("refunded")))
	assert.False(t, p.Allowed(Status(""), StatusPending))
}

func TestStrictPolicy(t *testing.T) {
	p := StrictPolicy{}

	allowed := [][2]Status{
		{StatusPending, StatusShipped},
		{StatusPending, StatusCancelled},
		{StatusShipped, StatusDelivered},
		{StatusShipped, StatusReturned},
		{StatusDelivered, StatusPickupScheduled},
		{StatusDelivered, StatusCompleted},
		{StatusPickupScheduled, StatusReturned},
		{StatusReturned, StatusCompleted},
		{StatusReturned, StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, p.Allowed(tr[0], tr[1]), "%s -> %s should be allowed", tr[0], tr[1])
	}

	denied := [][2]Status{
		{StatusPending, StatusDelivered},
		{StatusPending, StatusCompleted},
		{StatusDelivered, StatusPending},
		{StatusCompleted, StatusPending},
		{StatusCancelled, StatusShipped},
	}
	for _, tr := range denied {
		assert.False(t, p.Allowed(tr[0], tr[1]), "%s -> %s should be denied", tr[0], tr[1])
	}
}

func TestStrictPolicy_SameStatusIsIdempotent(t *testing.T) {
	p := StrictPolicy{}

	for _, s := range []Status{StatusPending, StatusDelivered, StatusCompleted, StatusCancelled} {
		assert.True(t, p.Allowed(s, s), "%s -> %s should be allowed", s, s)
	}
}

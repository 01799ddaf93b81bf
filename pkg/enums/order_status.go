package enums

import "fmt"

// OrderStatus maps to the orders.status check constraint.
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusVoided    OrderStatus = "voided"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCompleted,
	OrderStatusVoided,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known order status.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusVoided
}

// CanTransitionTo reports whether moving from s to next is legal.
// completed -> voided is the only legal edge.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusCompleted && next == OrderStatusVoided
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

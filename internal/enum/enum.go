package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusOrdered         OrderStatus = "ORDERED"
	OrderStatusPreparing       OrderStatus = "PREPARING"
	OrderStatusPreparedWaiting OrderStatus = "PREPARED_WAITING"
	OrderStatusServed          OrderStatus = "SERVED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// KitchenStatuses are the statuses shown on a kitchen display, in board order.
var KitchenStatuses = []OrderStatus{
	OrderStatusOrdered,
	OrderStatusPreparing,
	OrderStatusPreparedWaiting,
}

// Transitions lists the forward transitions the kitchen may request.
// SERVED, COMPLETED and CANCELLED are reached outside the kitchen flow.
var Transitions = map[OrderStatus]OrderStatus{
	OrderStatusOrdered:   OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusPreparedWaiting,
}

// rank orders statuses along the lifecycle. Terminal statuses share the top rank.
var rank = map[OrderStatus]int{
	OrderStatusOrdered:         1,
	OrderStatusPreparing:       2,
	OrderStatusPreparedWaiting: 3,
	OrderStatusServed:          4,
	OrderStatusCompleted:       4,
	OrderStatusCancelled:       4,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := rank[s]
	return ok
}

// IsActive reports whether the kitchen still has work to do for s.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusOrdered, OrderStatusPreparing, OrderStatusPreparedWaiting:
		return true
	}
	return false
}

// IsTerminal reports whether s can no longer change from the kitchen's point of view.
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && !s.IsActive()
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s OrderStatus) Before(other OrderStatus) bool {
	return rank[s] < rank[other]
}

// CanAdvance reports whether the kitchen may move an order from `from` to `to`.
func CanAdvance(from, to OrderStatus) bool {
	next, ok := Transitions[from]
	return ok && next == to
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleSuperAdmin = "ROLE_SUPERADMIN"
	UserRoleAdmin      = "ROLE_ADMIN"
	UserRoleWaiter     = "ROLE_WAITER"
	UserRoleKitchen    = "ROLE_KITCHEN"
)

// NormalizeRole maps short or lower-case role names onto the canonical ROLE_* form.
// Unknown roles map to "".
func NormalizeRole(role string) string {
	switch role {
	case UserRoleSuperAdmin, "SUPERADMIN", "superadmin":
		return UserRoleSuperAdmin
	case UserRoleAdmin, "ADMIN", "admin":
		return UserRoleAdmin
	case UserRoleWaiter, "WAITER", "waiter":
		return UserRoleWaiter
	case UserRoleKitchen, "KITCHEN", "kitchen":
		return UserRoleKitchen
	}
	return ""
}

// ── Group B: Event types (no DB constraint) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

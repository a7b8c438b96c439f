package model

// KitchenPinLength is the number of digits in a kitchen PIN.
const KitchenPinLength = 6

// ValidKitchenPin reports whether pin is exactly six ASCII digits.
func ValidKitchenPin(pin string) bool {
	if len(pin) != KitchenPinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// Clone returns a copy of o that shares no slices with it.
func (o Order) Clone() Order {
	if o.Items != nil {
		items := make([]OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

// MaxItemQty caps the quantity of a single order line.
const MaxItemQty = 999

// ValidItemQty reports whether qty is an acceptable order line quantity.
func ValidItemQty(qty int) bool {
	return qty >= 1 && qty <= MaxItemQty
}

package domain

// DeliveryMethod is how a subject administers insulin.
type DeliveryMethod string

const (
	DeliveryPump      DeliveryMethod = "Insulin pump"
	DeliveryInjection DeliveryMethod = "Multiple daily injections"
)

// DeliveryMethods lists every method in report order.
var DeliveryMethods = []DeliveryMethod{DeliveryPump, DeliveryInjection}

// String returns the string representation of DeliveryMethod.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid checks if the delivery method is a valid value.
func (d DeliveryMethod) IsValid() bool {
	return d == DeliveryPump || d == DeliveryInjection
}

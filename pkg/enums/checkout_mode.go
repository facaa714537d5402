package enums

import "fmt"

// CheckoutMode distinguishes recurring subscriptions from one-off purchases.
type CheckoutMode string

const (
	CheckoutModeSubscription CheckoutMode = "subscription"
	CheckoutModePayment      CheckoutMode = "payment"
)

var validCheckoutModes = []CheckoutMode{
	CheckoutModeSubscription,
	CheckoutModePayment,
}

// String implements fmt.Stringer.
func (m CheckoutMode) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m CheckoutMode) IsValid() bool {
	for _, candidate := range validCheckoutModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseCheckoutMode converts raw input into a CheckoutMode.
func ParseCheckoutMode(value string) (CheckoutMode, error) {
	for _, candidate := range validCheckoutModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout mode %q", value)
}

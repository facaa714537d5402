package enums

import "fmt"

// PlanDuration is the billing cadence of a plan.
type PlanDuration string

const (
	PlanDurationMonthly    PlanDuration = "monthly"
	PlanDurationAnnually   PlanDuration = "annually"
	PlanDurationDiscounted PlanDuration = "discounted"
)

var validPlanDurations = []PlanDuration{
	PlanDurationMonthly,
	PlanDurationAnnually,
	PlanDurationDiscounted,
}

// String implements fmt.Stringer.
func (d PlanDuration) String() string {
	return string(d)
}

// IsValid reports whether the value is known.
func (d PlanDuration) IsValid() bool {
	for _, candidate := range validPlanDurations {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParsePlanDuration converts raw input into a PlanDuration.
func ParsePlanDuration(value string) (PlanDuration, error) {
	for _, candidate := range validPlanDurations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan duration %q", value)
}

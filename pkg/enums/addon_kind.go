package enums

import "fmt"

// AddonKind names the three incremental entitlements an organization can buy.
type AddonKind string

const (
	AddonKindMessages AddonKind = "messages"
	AddonKindStorage  AddonKind = "storage"
	AddonKindUsers    AddonKind = "users"
)

var validAddonKinds = []AddonKind{
	AddonKindMessages,
	AddonKindStorage,
	AddonKindUsers,
}

// SKUSlug returns the catalog slug of the SKU row carrying this kind's price.
func (k AddonKind) SKUSlug() PlanSlug {
	switch k {
	case AddonKindMessages:
		return PlanSlugAddonMessages
	case AddonKindStorage:
		return PlanSlugAddonStorage
	case AddonKindUsers:
		return PlanSlugAddonUsers
	}
	return ""
}

// String implements fmt.Stringer.
func (k AddonKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k AddonKind) IsValid() bool {
	for _, candidate := range validAddonKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAddonKind converts raw input into an AddonKind.
func ParseAddonKind(value string) (AddonKind, error) {
	for _, candidate := range validAddonKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid addon kind %q", value)
}

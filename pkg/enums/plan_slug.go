package enums

import "fmt"

// PlanSlug identifies a catalog plan. The set is closed; `custom` rows are
// created per organization and excluded from public listings.
type PlanSlug string

const (
	PlanSlugFree              PlanSlug = "free"
	PlanSlugSmallTeamMonthly  PlanSlug = "small_team_monthly"
	PlanSlugSmallTeamAnnually PlanSlug = "small_team_annually"
	PlanSlugLargeTeamMonthly  PlanSlug = "large_team_monthly"
	PlanSlugLargeTeamAnnually PlanSlug = "large_team_annually"
	PlanSlugEnterprise        PlanSlug = "enterprise"
	PlanSlugAddonMessages     PlanSlug = "addon_messages"
	PlanSlugAddonStorage      PlanSlug = "addon_storage"
	PlanSlugAddonUsers        PlanSlug = "addon_users"
	PlanSlugCustom            PlanSlug = "custom"
)

var validPlanSlugs = []PlanSlug{
	PlanSlugFree,
	PlanSlugSmallTeamMonthly,
	PlanSlugSmallTeamAnnually,
	PlanSlugLargeTeamMonthly,
	PlanSlugLargeTeamAnnually,
	PlanSlugEnterprise,
	PlanSlugAddonMessages,
	PlanSlugAddonStorage,
	PlanSlugAddonUsers,
	PlanSlugCustom,
}

// String implements fmt.Stringer.
func (s PlanSlug) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PlanSlug) IsValid() bool {
	for _, candidate := range validPlanSlugs {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsAddonSKU reports whether the slug names a purchasable add-on SKU row.
func (s PlanSlug) IsAddonSKU() bool {
	switch s {
	case PlanSlugAddonMessages, PlanSlugAddonStorage, PlanSlugAddonUsers:
		return true
	}
	return false
}

// ParsePlanSlug converts raw input into a PlanSlug.
func ParsePlanSlug(value string) (PlanSlug, error) {
	for _, candidate := range validPlanSlugs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan slug %q", value)
}

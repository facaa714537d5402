package stripewebhook

import (
	"fmt"
	"strconv"

	"github.com/parley-ai/parley-backend/internal/checkout"
)

// The gateway's metadata bag only transports strings. Each event branch gets
// one typed decode; a malformed bag fails the decode and the branch is
// skipped instead of half-applied.

type checkoutPlanMetadata struct {
	UserID         int64
	NewPlanID      int64
	OrganizationID int64
}

type addonPurchaseMetadata struct {
	UserID         int64
	OrganizationID int64
	PlanID         int64
	Messages       int64
	Storage        int64
	Users          int64
}

func decodeCheckoutPlanMetadata(metadata map[string]string) (*checkoutPlanMetadata, error) {
	userID, err := requiredID(metadata, checkout.MetadataKeyUserID)
	if err != nil {
		return nil, err
	}
	newPlanID, err := requiredID(metadata, checkout.MetadataKeyNewPlanID)
	if err != nil {
		return nil, err
	}
	organizationID, err := requiredID(metadata, checkout.MetadataKeyOrganizationID)
	if err != nil {
		return nil, err
	}
	return &checkoutPlanMetadata{
		UserID:         userID,
		NewPlanID:      newPlanID,
		OrganizationID: organizationID,
	}, nil
}

func decodeAddonPurchaseMetadata(metadata map[string]string) (*addonPurchaseMetadata, error) {
	userID, err := requiredID(metadata, checkout.MetadataKeyUserID)
	if err != nil {
		return nil, err
	}
	organizationID, err := requiredID(metadata, checkout.MetadataKeyOrganizationID)
	if err != nil {
		return nil, err
	}
	planID, err := optionalNumber(metadata, checkout.MetadataKeyPlanID)
	if err != nil {
		return nil, err
	}
	messages, err := optionalNumber(metadata, checkout.MetadataKeyMessages)
	if err != nil {
		return nil, err
	}
	storage, err := optionalNumber(metadata, checkout.MetadataKeyStorage)
	if err != nil {
		return nil, err
	}
	users, err := optionalNumber(metadata, checkout.MetadataKeyUsers)
	if err != nil {
		return nil, err
	}
	return &addonPurchaseMetadata{
		UserID:         userID,
		OrganizationID: organizationID,
		PlanID:         planID,
		Messages:       messages,
		Storage:        storage,
		Users:          users,
	}, nil
}

func requiredID(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("metadata %s missing", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("metadata %s is not a positive id: %q", key, raw)
	}
	return id, nil
}

// optionalNumber treats an absent key as zero but still rejects garbage.
func optionalNumber(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("metadata %s is not a non-negative number: %q", key, raw)
	}
	return value, nil
}

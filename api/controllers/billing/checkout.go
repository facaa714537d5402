package billing

import (
	"context"
	"net/http"

	"github.com/parley-ai/parley-backend/api/responses"
	"github.com/parley-ai/parley-backend/api/validators"
	checkoutsvc "github.com/parley-ai/parley-backend/internal/checkout"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

// CheckoutService describes the checkout methods used by the HTTP controllers.
type CheckoutService interface {
	CreateCheckoutPlan(ctx context.Context, params checkoutsvc.CheckoutPlanParams) (string, error)
	CreateCheckoutAddons(ctx context.Context, params checkoutsvc.CheckoutAddonsParams) (string, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string, organizationID int64) error
}

type checkoutPlanRequest struct {
	UserID         int64  `json:"user_id" validate:"required,gt=0"`
	Email          string `json:"email" validate:"required,email"`
	NewPlanID      int64  `json:"new_plan_id" validate:"required,gt=0"`
	OrganizationID int64  `json:"organization_id" validate:"required,gt=0"`
}

type addonQuantitiesPayload struct {
	Messages int64 `json:"messages" validate:"gte=0"`
	Storage  int64 `json:"storage" validate:"gte=0"`
	Users    int64 `json:"users" validate:"gte=0"`
}

type checkoutAddonsRequest struct {
	UserID         int64                  `json:"user_id" validate:"required,gt=0"`
	Email          string                 `json:"email" validate:"required,email"`
	OrganizationID int64                  `json:"organization_id" validate:"required,gt=0"`
	Quantities     addonQuantitiesPayload `json:"quantities"`
}

type cancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	OrganizationID int64  `json:"organization_id" validate:"required,gt=0"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func CheckoutPlan(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreateCheckoutPlan(ctx, checkoutsvc.CheckoutPlanParams{
			UserID:         payload.UserID,
			Email:          payload.Email,
			NewPlanID:      payload.NewPlanID,
			OrganizationID: payload.OrganizationID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, redirectResponse{URL: url})
	}
}

func CheckoutAddons(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutAddonsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreateCheckoutAddons(ctx, checkoutsvc.CheckoutAddonsParams{
			UserID:         payload.UserID,
			Email:          payload.Email,
			OrganizationID: payload.OrganizationID,
			Quantities: checkoutsvc.AddonQuantities{
				Messages: payload.Quantities.Messages,
				Storage:  payload.Quantities.Storage,
				Users:    payload.Quantities.Users,
			},
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, redirectResponse{URL: url})
	}
}

func CancelSubscription(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload cancelSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.CancelSubscription(ctx, payload.SubscriptionID, payload.OrganizationID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

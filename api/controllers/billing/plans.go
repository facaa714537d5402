package billing

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parley-ai/parley-backend/api/responses"
	"github.com/parley-ai/parley-backend/api/validators"
	planssvc "github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

// PlanService describes the plan catalog methods used by the HTTP controllers.
type PlanService interface {
	GetAll(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	GetAddonForOrganization(ctx context.Context, organizationID int64) (*models.AddonEntitlement, error)
	UpdateCustomLimitsForOrganization(ctx context.Context, values planssvc.CustomLimits, organizationID int64) (*models.Plan, error)
}

type planListResponse struct {
	Plans []models.Plan `json:"plans"`
}

type updateLimitsRequest struct {
	MessageLimit int64 `json:"message_limit" validate:"gte=0"`
	StorageLimit int64 `json:"storage_limit" validate:"gte=0"`
	UserLimit    int64 `json:"user_limit" validate:"gte=0"`
}

func PlansList(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.GetAll(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plans})
	}
}

func PlanGet(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		id, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.GetPlan(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

func OrganizationAddonGet(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		organizationID, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addon, err := svc.GetAddonForOrganization(ctx, organizationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if addon == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "organization has no addon entitlement"))
			return
		}
		responses.WriteSuccess(w, addon)
	}
}

func OrganizationLimitsUpdate(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		organizationID, err := pathID(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateLimitsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.UpdateCustomLimitsForOrganization(ctx, planssvc.CustomLimits{
			MessageLimit: payload.MessageLimit,
			StorageLimit: payload.StorageLimit,
			UserLimit:    payload.UserLimit,
		}, organizationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name+" path parameter")
	}
	return id, nil
}

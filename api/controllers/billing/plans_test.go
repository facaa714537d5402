package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	planssvc "github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
)

type stubPlanService struct {
	plans  []models.Plan
	plan   *models.Plan
	addon  *models.AddonEntitlement
	custom *models.Plan

	limitsCalls []planssvc.CustomLimits
}

func (s *stubPlanService) GetAll(ctx context.Context) ([]models.Plan, error) {
	return s.plans, nil
}

func (s *stubPlanService) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	if s.plan == nil || s.plan.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return s.plan, nil
}

func (s *stubPlanService) GetAddonForOrganization(ctx context.Context, organizationID int64) (*models.AddonEntitlement, error) {
	return s.addon, nil
}

func (s *stubPlanService) UpdateCustomLimitsForOrganization(ctx context.Context, values planssvc.CustomLimits, organizationID int64) (*models.Plan, error) {
	s.limitsCalls = append(s.limitsCalls, values)
	return s.custom, nil
}

func billingRouter(svc PlanService) http.Handler {
	r := chi.NewRouter()
	r.Get("/plans", PlansList(svc, nil))
	r.Get("/plans/{id}", PlanGet(svc, nil))
	r.Get("/organizations/{id}/addon", OrganizationAddonGet(svc, nil))
	r.Put("/organizations/{id}/limits", OrganizationLimitsUpdate(svc, nil))
	return r
}

func TestPlansList(t *testing.T) {
	svc := &stubPlanService{plans: []models.Plan{
		{ID: 1, Name: "Free", Slug: enums.PlanSlugFree},
		{ID: 2, Name: "Small Team", Slug: enums.PlanSlugSmallTeamMonthly},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	billingRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Plans []models.Plan `json:"plans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Plans, 2)
}

func TestPlanGetNotFound(t *testing.T) {
	svc := &stubPlanService{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plans/99", nil)
	billingRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanGetRejectsBadID(t *testing.T) {
	svc := &stubPlanService{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plans/abc", nil)
	billingRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrganizationAddonGet(t *testing.T) {
	svc := &stubPlanService{addon: &models.AddonEntitlement{ID: 5, ExtraMessages: 100}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations/3/addon", nil)
	billingRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"extra_messages":100`)
}

func TestOrganizationAddonGetMissingIs404(t *testing.T) {
	svc := &stubPlanService{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations/3/addon", nil)
	billingRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrganizationLimitsUpdate(t *testing.T) {
	svc := &stubPlanService{custom: &models.Plan{ID: 8, Slug: enums.PlanSlugCustom}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/organizations/3/limits",
		strings.NewReader(`{"message_limit":1000,"storage_limit":50,"user_limit":25}`))
	billingRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.limitsCalls, 1)
	assert.Equal(t, planssvc.CustomLimits{MessageLimit: 1000, StorageLimit: 50, UserLimit: 25}, svc.limitsCalls[0])
}

func TestOrganizationLimitsUpdateRejectsNegative(t *testing.T) {
	svc := &stubPlanService{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/organizations/3/limits",
		strings.NewReader(`{"message_limit":-1,"storage_limit":0,"user_limit":0}`))
	billingRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.limitsCalls)
}

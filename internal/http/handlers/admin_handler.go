// Admin analytics handlers.
//
// Read-only endpoints over the Stats Aggregator, mounted behind AdminAuth:
//   - GET /api/v1/admin/tenants/{tenant}/stats
//   - GET /api/v1/admin/tenants/{tenant}/queries?limit=N
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/duckbot/internal/services"
	"github.com/tbourn/duckbot/internal/utils"
)

// StatsReader is the part of services.StatsService the admin API needs.
type StatsReader interface {
	Summary(ctx context.Context, tenant string) (services.Summary, error)
	RecentQueries(ctx context.Context, tenant string, n int) ([]services.Query, error)
}

// Admin groups the admin API endpoints.
type Admin struct {
	stats   StatsReader
	tenants map[string]struct{}
}

// NewAdmin binds the handlers to stats; requests for tenants outside
// tenantIDs are answered with 404.
func NewAdmin(stats StatsReader, tenantIDs []string) *Admin {
	t := make(map[string]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		t[id] = struct{}{}
	}
	return &Admin{stats: stats, tenants: t}
}

// QueriesResponse wraps a recent-queries listing.
type QueriesResponse struct {
	Tenant  string           `json:"tenant" example:"duck"`
	Limit   int              `json:"limit" example:"10"`
	Queries []services.Query `json:"queries"`
}

func (h *Admin) tenant(c *gin.Context) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(c.Param("tenant")))
	if _, ok := h.tenants[id]; !ok {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown tenant")
		return "", false
	}
	return id, true
}

// TenantStats godoc
// @ID          tenantStats
// @Summary     Usage summary for a tenant
// @Description Aggregates all stored turns of the tenant, excluding administrators.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       tenant  path  string  true  "Tenant id"  example(duck)
// @Success     200  {object}  services.Summary
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an administrator"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown tenant"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/admin/tenants/{tenant}/stats [get]
func (h *Admin) TenantStats(c *gin.Context) {
	tenant, found := h.tenant(c)
	if !found {
		return
	}
	s, err := h.stats.Summary(c.Request.Context(), tenant)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, s)
}

// RecentQueries godoc
// @ID          recentQueries
// @Summary     Recent user queries for a tenant
// @Description Lists the newest non-administrator messages. limit defaults to 10 and is capped at 100.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       tenant  path   string  true   "Tenant id"  example(duck)
// @Param       limit   query  int     false  "Listing size (1..100)"  example(10)
// @Success     200  {object}  handlers.QueriesResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an administrator"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown tenant"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/admin/tenants/{tenant}/queries [get]
func (h *Admin) RecentQueries(c *gin.Context) {
	tenant, found := h.tenant(c)
	if !found {
		return
	}
	limit := services.ClampQueryLimit(utils.AtoiDefault(c.Query("limit"), 0))
	qs, err := h.stats.RecentQueries(c.Request.Context(), tenant, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, QueriesResponse{Tenant: tenant, Limit: limit, Queries: qs})
}

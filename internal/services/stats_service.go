package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 100
)

// Summary is the rounded usage report for one tenant.
type Summary struct {
	Tenant            string     `json:"tenant"`
	TotalTokens       int64      `json:"total_tokens"`
	TotalTurns        int64      `json:"total_turns"`
	DistinctUsers     int64      `json:"distinct_users"`
	First             *time.Time `json:"first,omitempty"`
	Last              *time.Time `json:"last,omitempty"`
	AvgTokens         int        `json:"avg_tokens"`
	AvgResponseLength int        `json:"avg_response_length"`
}

// Query is one recent user message.
type Query struct {
	At       time.Time `json:"at"`
	UserName string    `json:"user_name"`
	Message  string    `json:"message"`
}

// StatsService aggregates usage per tenant, always excluding Admins so
// operator traffic does not skew the numbers.
type StatsService struct {
	DB     *gorm.DB
	Admins []string
}

// Summary returns the usage report for tenant.
func (s *StatsService) Summary(ctx context.Context, tenant string) (Summary, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Summary", trace.WithAttributes(attribute.String("tenant", tenant)))
	defer span.End()

	st, err := repo.TenantStats(ctx, s.DB, tenant, s.Admins)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Tenant:            tenant,
		TotalTokens:       st.TotalTokens,
		TotalTurns:        st.TotalTurns,
		DistinctUsers:     st.DistinctUsers,
		First:             st.First,
		Last:              st.Last,
		AvgTokens:         int(math.Round(st.AvgTokens)),
		AvgResponseLength: int(math.Round(st.AvgResponseLength)),
	}, nil
}

// ClampQueryLimit maps a requested listing size onto [1, 100], with
// non-positive values selecting the default of 10.
func ClampQueryLimit(n int) int {
	switch {
	case n <= 0:
		return defaultQueryLimit
	case n > maxQueryLimit:
		return maxQueryLimit
	}
	return n
}

// RecentQueries lists up to n (clamped) recent non-admin messages for
// tenant, newest first.
func (s *StatsService) RecentQueries(ctx context.Context, tenant string, n int) ([]Query, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "RecentQueries",
		trace.WithAttributes(attribute.String("tenant", tenant), attribute.Int("limit", n)),
	)
	defer span.End()

	rows, err := repo.RecentQueries(ctx, s.DB, tenant, ClampQueryLimit(n), s.Admins)
	if err != nil {
		return nil, err
	}
	out := make([]Query, 0, len(rows))
	for _, r := range rows {
		out = append(out, Query{At: r.At, UserName: r.UserName, Message: r.Message})
	}
	return out, nil
}

package balances

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// Service answers balance queries for reporting callers.
type Service struct {
	repo  Repository
	group singleflight.Group
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns balance rows for a tenant/branch. Identical concurrent
// queries are collapsed to a single repository round trip.
func (s *Service) List(ctx context.Context, tenantID, branchID int64, filters ListFilters) ([]AccountBalance, error) {
	if tenantID == 0 || branchID == 0 {
		return nil, fmt.Errorf("%w: tenant and branch required", shared.ErrValidation)
	}
	key := fmt.Sprintf("%d:%d:%d:%d:%d", tenantID, branchID, filters.AccountID, filters.FiscalYear, filters.FiscalMonth)
	// The collapsed query outlives the first caller; its cancellation must
	// not fail everyone sharing the flight.
	queryCtx := context.WithoutCancel(ctx)
	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.repo.List(queryCtx, tenantID, branchID, filters)
	})
	if err != nil {
		return nil, err
	}
	return result.([]AccountBalance), nil
}

// Verify reports balance rows violating the additive closing identity.
// Used by the background integrity scan.
func Verify(rows []AccountBalance, epsilon float64) []AccountBalance {
	var bad []AccountBalance
	for _, row := range rows {
		expected := row.OpeningBalance + row.DebitMovements - row.CreditMovements
		if math.Abs(expected-row.ClosingBalance) > epsilon {
			bad = append(bad, row)
		}
	}
	return bad
}

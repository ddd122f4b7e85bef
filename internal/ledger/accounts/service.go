package accounts

import (
	"context"
	"fmt"

	"github.com/medichain-erp/medichain-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a chart of accounts entry for a tenant.
func (s *Service) Create(ctx context.Context, account Account) (Account, error) {
	if account.TenantID == 0 || account.Code == "" || account.Name == "" {
		return Account{}, fmt.Errorf("%w: tenant, code and name required", shared.ErrValidation)
	}
	if !account.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, account.Type)
	}
	account.IsActive = true
	return s.repo.Create(ctx, account)
}

// Deactivate retires an account. Accounts referenced by posted lines cannot
// be removed, only deactivated.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMappingNotFound indicates no posting mapping is configured.
var ErrMappingNotFound = errors.New("ledger: posting mapping not found")

type Repository interface {
	Get(ctx context.Context, tenantID int64, sourceType string) (PostingMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves the posting mapping for the specified source type.
func (r *repository) Get(ctx context.Context, tenantID int64, sourceType string) (PostingMapping, error) {
	if tenantID == 0 || sourceType == "" {
		return PostingMapping{}, errors.New("ledger: tenant and source type required")
	}
	normalized := strings.ToUpper(sourceType)
	var mapping PostingMapping
	err := r.db.QueryRow(ctx, `SELECT tenant_id, source_type, debit_account_id, credit_account_id, created_at, updated_at
FROM posting_mappings WHERE tenant_id=$1 AND source_type=$2`, tenantID, normalized).
		Scan(&mapping.TenantID, &mapping.SourceType, &mapping.DebitAccountID, &mapping.CreditAccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingMapping{}, ErrMappingNotFound
		}
		return PostingMapping{}, err
	}
	return mapping, nil
}

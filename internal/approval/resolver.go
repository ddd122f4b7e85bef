package approval

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/medichain-erp/medichain-erp/internal/directory"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// DirectoryPort exposes the user directory lookups the resolver needs.
type DirectoryPort interface {
	FirstByRole(ctx context.Context, tenantID, branchID int64, roles ...string) (directory.User, error)
	ManagerOf(ctx context.Context, userID int64) (directory.User, error)
	AuthorityFor(ctx context.Context, tenantID, branchID int64, amount float64) (directory.User, error)
}

// Resolver computes ordered approver chains for a tenant/branch/amount.
type Resolver struct {
	dir    DirectoryPort
	logger *slog.Logger
	strict bool
}

// NewResolver constructs a Resolver.
func NewResolver(dir DirectoryPort, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// WithStrictBands makes Resolve fail with shared.ErrNoApprover when an
// applicable band has no occupant, instead of skipping the band.
func (r *Resolver) WithStrictBands(strict bool) *Resolver {
	r.strict = strict
	return r
}

// Resolve returns the ordered approval chain for the given amount. Bands are
// evaluated independently and every applicable band contributes a step; the
// result is sorted ascending by level. An empty chain means the caller must
// auto-approve. A band whose role has no occupant is skipped.
func (r *Resolver) Resolve(ctx context.Context, tenantID, branchID, requesterID int64, amount float64) ([]ChainStep, error) {
	var chain []ChainStep

	if amount > ThresholdDirector {
		step, ok, err := r.bandStep(ctx, tenantID, branchID, LevelExecutive, ThresholdDirector,
			directory.RoleCEO, directory.RoleDirector)
		if err != nil {
			return nil, err
		}
		if ok {
			chain = append(chain, step)
		}
	}
	if amount > ThresholdFinance {
		step, ok, err := r.bandStep(ctx, tenantID, branchID, LevelStaff, ThresholdFinance,
			directory.RoleFinanceManager, directory.RoleAccountant, directory.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if ok {
			chain = append(chain, step)
		}
	}
	if amount > ThresholdBranchManager {
		step, ok, err := r.bandStep(ctx, tenantID, branchID, LevelStaff, ThresholdBranchManager,
			directory.RoleBranchManager)
		if err != nil {
			return nil, err
		}
		if ok {
			chain = append(chain, step)
		}
	}

	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Level < chain[j].Level })
	return chain, nil
}

func (r *Resolver) bandStep(ctx context.Context, tenantID, branchID int64, level int, limit float64, roles ...string) (ChainStep, bool, error) {
	user, err := r.dir.FirstByRole(ctx, tenantID, branchID, roles...)
	if err != nil {
		if errors.Is(err, shared.ErrNoApprover) {
			if r.strict {
				return ChainStep{}, false, err
			}
			if r.logger != nil {
				r.logger.Warn("approval band has no occupant, skipping",
					slog.Int64("tenant_id", tenantID),
					slog.Int64("branch_id", branchID),
					slog.Int("level", level))
			}
			return ChainStep{}, false, nil
		}
		return ChainStep{}, false, err
	}
	return ChainStep{Level: level, ApproverID: user.ID, AmountLimit: limit}, true, nil
}

// ManagerOf resolves the requester's configured unit/branch manager.
func (r *Resolver) ManagerOf(ctx context.Context, userID int64) (directory.User, error) {
	return r.dir.ManagerOf(ctx, userID)
}

// AccountantFor resolves the tenant/branch accountant.
func (r *Resolver) AccountantFor(ctx context.Context, tenantID, branchID int64) (directory.User, error) {
	return r.dir.FirstByRole(ctx, tenantID, branchID, directory.RoleAccountant, directory.RoleFinanceManager)
}

// AuthorityFor resolves the approving authority whose ceiling covers the
// amount, ties broken by the smallest qualifying ceiling.
func (r *Resolver) AuthorityFor(ctx context.Context, tenantID, branchID int64, amount float64) (directory.User, error) {
	return r.dir.AuthorityFor(ctx, tenantID, branchID, amount)
}

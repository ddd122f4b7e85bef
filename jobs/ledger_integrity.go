package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
)

// LedgerIntegrityJob scans posted journal entries for broken double-entry
// identities. It never mutates anything; findings go to the log for an
// operator to chase.
type LedgerIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedgerIntegrityJob constructs the job.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return j.Run(ctx, payload.TenantID)
}

// Lines hang off journal_entries via journal_lines.je_id; keep these in sync
// with the journals repository.
const integrityScanQuery = `SELECT e.id, e.number, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
JOIN journal_lines l ON l.je_id = e.id
WHERE e.status = 'POSTED' AND ($1 = 0 OR e.tenant_id = $1)
GROUP BY e.id, e.number
HAVING ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) > $2`

const balanceIdentityQuery = `SELECT id, account_id, opening_balance, debit_movements, credit_movements, closing_balance
FROM account_balances
WHERE ($1 = 0 OR tenant_id = $1)
AND ABS(closing_balance - (opening_balance + debit_movements - credit_movements)) > $2`

// Run executes the scan. Posted entries whose lines net outside the balance
// tolerance are logged with their entry numbers.
func (j *LedgerIntegrityJob) Run(ctx context.Context, tenantID int64) error {
	rows, err := j.pool.Query(ctx, integrityScanQuery, tenantID, journals.BalanceEpsilon)
	if err != nil {
		return err
	}
	defer rows.Close()

	var broken int
	for rows.Next() {
		var id int64
		var number string
		var debit, credit float64
		if err := rows.Scan(&id, &number, &debit, &credit); err != nil {
			return err
		}
		broken++
		j.logger.Error("journal entry out of balance",
			slog.Int64("entry_id", id),
			slog.String("number", number),
			slog.Float64("delta", math.Abs(debit-credit)))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if broken == 0 {
		j.logger.Info("ledger integrity scan clean", slog.Int64("tenant_id", tenantID))
	} else {
		j.logger.Warn("ledger integrity scan found broken entries",
			slog.Int64("tenant_id", tenantID), slog.Int("count", broken))
	}
	return j.verifyBalances(ctx, tenantID)
}

// verifyBalances checks the additive identity on materialised balance rows.
func (j *LedgerIntegrityJob) verifyBalances(ctx context.Context, tenantID int64) error {
	rows, err := j.pool.Query(ctx, balanceIdentityQuery, tenantID, journals.BalanceEpsilon)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, accountID int64
		var opening, debits, credits, closing float64
		if err := rows.Scan(&id, &accountID, &opening, &debits, &credits, &closing); err != nil {
			return err
		}
		j.logger.Error("balance row violates additive identity",
			slog.Int64("balance_id", id),
			slog.Int64("account_id", accountID),
			slog.Float64("closing", closing),
			slog.Float64("expected", opening+debits-credits))
	}
	return rows.Err()
}

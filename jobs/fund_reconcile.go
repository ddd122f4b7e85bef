package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
)

// FundReconcileJob cross-checks each petty cash fund's balance against its
// movement history: float plus applied replenishments minus disbursed expenses.
type FundReconcileJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewFundReconcileJob constructs the job.
func NewFundReconcileJob(pool *pgxpool.Pool, logger *slog.Logger) *FundReconcileJob {
	return &FundReconcileJob{pool: pool, logger: logger}
}

// Handle processes TaskFundReconcile tasks.
func (j *FundReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	return j.Run(ctx)
}

const fundDriftQuery = `SELECT f.id, f.name, f.float_amount, f.balance,
COALESCE((SELECT SUM(t.amount) FROM petty_cash_transactions t
	WHERE t.fund_id = f.id AND t.type = 'REPLENISHMENT' AND t.status = 'DISBURSED'), 0),
COALESCE((SELECT SUM(t.amount) FROM petty_cash_transactions t
	WHERE t.fund_id = f.id AND t.type = 'EXPENSE' AND t.status = 'DISBURSED'), 0)
FROM petty_cash_funds f
WHERE f.active`

// Run executes the reconciliation over every active fund.
func (j *FundReconcileJob) Run(ctx context.Context) error {
	rows, err := j.pool.Query(ctx, fundDriftQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	var drifted int
	for rows.Next() {
		var id int64
		var name string
		var floatAmount, balance, replenished, disbursed float64
		if err := rows.Scan(&id, &name, &floatAmount, &balance, &replenished, &disbursed); err != nil {
			return err
		}
		expected := floatAmount + replenished - disbursed
		if math.Abs(balance-expected) > journals.BalanceEpsilon {
			drifted++
			j.logger.Error("fund balance drifted from movement history",
				slog.Int64("fund_id", id),
				slog.String("name", name),
				slog.Float64("balance", balance),
				slog.Float64("expected", expected))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if drifted == 0 {
		j.logger.Info("fund reconciliation clean")
	}
	return nil
}

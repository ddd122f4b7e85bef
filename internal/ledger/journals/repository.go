package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, tenantID int64) ([]JournalEntry, error)
	Get(ctx context.Context, entryID int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// BalanceMovement is one line's contribution to a period balance row.
type BalanceMovement struct {
	AccountID   int64
	TenantID    int64
	BranchID    int64
	FiscalYear  int
	FiscalMonth int
	Debit       float64
	Credit      float64
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextEntryNumber(ctx context.Context, tenantID int64, year int) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	MarkPosted(ctx context.Context, entryID, approverID int64, at time.Time) error
	LinkSource(ctx context.Context, sourceType string, ref uuid.UUID, entryID int64) error

	// Balance upkeep happens inside the posting transaction so an entry and
	// its derived balances commit or roll back together.
	UpsertBalanceMovement(ctx context.Context, movement BalanceMovement) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, tenant_id, branch_id, number, date, description, total_debit, total_credit, status, source_type, source_id, created_by, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.BranchID, &e.Number, &e.Date, &e.Description,
		&e.TotalDebit, &e.TotalCredit, &e.Status, &e.SourceType, &e.SourceID,
		&e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 ORDER BY number DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, je_id, account_id, description, debit, credit, created_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Description, &line.Debit, &line.Credit, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextEntryNumber(ctx context.Context, tenantID int64, year int) (string, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO doc_sequences (tenant_id, kind, period, value)
VALUES ($1, 'JE', $2, 1)
ON CONFLICT (tenant_id, kind, period) DO UPDATE SET value = doc_sequences.value + 1
RETURNING value`, tenantID, year).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("JE-%d-%06d", year, seq), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, branch_id, number, date, description, total_debit, total_credit, status, source_type, source_id, created_by, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id, created_at, updated_at`,
		entry.TenantID, entry.BranchID, entry.Number, entry.Date, entry.Description,
		toNumeric(entry.TotalDebit), toNumeric(entry.TotalCredit), entry.Status,
		entry.SourceType, entry.SourceID, entry.CreatedBy, entry.PostedBy, entry.PostedAt)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, description, debit, credit)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, line.Description, toNumeric(line.Debit), toNumeric(line.Credit)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, je_id, account_id, description, debit, credit, created_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Description, &line.Debit, &line.Credit, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID, approverID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$2, posted_at=$3, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, entryID, approverID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, sourceType string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (source_type, ref_id, je_id) VALUES ($1,$2,$3)`, sourceType, ref, entryID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return shared.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) UpsertBalanceMovement(ctx context.Context, m BalanceMovement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_balances
(account_id, tenant_id, branch_id, fiscal_year, fiscal_month, opening_balance, debit_movements, credit_movements, closing_balance)
VALUES ($1,$2,$3,$4,$5,0,$6,$7,$6-$7)
ON CONFLICT (account_id, tenant_id, branch_id, fiscal_year, fiscal_month) DO UPDATE SET
debit_movements = account_balances.debit_movements + EXCLUDED.debit_movements,
credit_movements = account_balances.credit_movements + EXCLUDED.credit_movements,
closing_balance = account_balances.opening_balance
	+ account_balances.debit_movements + EXCLUDED.debit_movements
	- account_balances.credit_movements - EXCLUDED.credit_movements,
updated_at = NOW()`,
		m.AccountID, m.TenantID, m.BranchID, m.FiscalYear, m.FiscalMonth,
		toNumeric(m.Debit), toNumeric(m.Credit))
	return err
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}

package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The scan queries live apart from the repositories that write the tables
// they read. Pin the join and filter columns so the halves cannot drift.

func TestIntegrityScanQueryMatchesLineSchema(t *testing.T) {
	// journal_lines hang off entries via je_id (journals repository).
	require.Contains(t, integrityScanQuery, "JOIN journal_lines l ON l.je_id = e.id")
	require.NotContains(t, integrityScanQuery, "entry_id")
	require.Contains(t, integrityScanQuery, "e.status = 'POSTED'")
}

func TestBalanceIdentityQueryColumns(t *testing.T) {
	require.Contains(t, balanceIdentityQuery, "FROM account_balances")
	require.Contains(t, balanceIdentityQuery, "opening_balance + debit_movements - credit_movements")
}

func TestFundDriftQueryMatchesTransactionSchema(t *testing.T) {
	// Movements come from typed petty_cash_transactions rows, not from the
	// funds table itself.
	require.Contains(t, fundDriftQuery, "FROM petty_cash_transactions t")
	require.Contains(t, fundDriftQuery, "t.type = 'REPLENISHMENT' AND t.status = 'DISBURSED'")
	require.Contains(t, fundDriftQuery, "t.type = 'EXPENSE' AND t.status = 'DISBURSED'")
}

package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodOf(t *testing.T) {
	period := PeriodOf(time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC))
	require.Equal(t, 2026, period.Year)
	require.Equal(t, 3, period.Month)
	require.Equal(t, 202603, period.YearMonth())

	period = PeriodOf(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 202612, period.YearMonth())
}

package shared

import "time"

// FiscalPeriod is the (year, month) bucket account balances accumulate in.
type FiscalPeriod struct {
	Year  int
	Month int
}

// PeriodOf returns the fiscal period containing ts.
func PeriodOf(ts time.Time) FiscalPeriod {
	return FiscalPeriod{Year: ts.Year(), Month: int(ts.Month())}
}

// YearMonth renders the period as yyyymm, used in document numbering.
func (p FiscalPeriod) YearMonth() int {
	return p.Year*100 + p.Month
}

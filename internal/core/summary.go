package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthTotal is the sum of expenses dated in one calendar month.
type MonthTotal struct {
	Year  int
	Month time.Month
	Count int
	Total decimal.Decimal
}

// Summary is a compact aggregate of a list of expenses.
type Summary struct {
	Count   int
	Total   decimal.Decimal
	ByMonth []MonthTotal // oldest month first
}

// Summarize aggregates expenses by calendar month. Expenses without a date
// count toward the overall total only.
func Summarize(expenses []Expense) Summary {
	s := Summary{Total: decimal.Zero}
	type key struct {
		year  int
		month time.Month
	}
	byMonth := map[key]*MonthTotal{}
	for _, e := range expenses {
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		if e.Date.IsEmpty() {
			continue
		}
		k := key{e.Date.Year(), e.Date.Month()}
		mt, ok := byMonth[k]
		if !ok {
			mt = &MonthTotal{Year: k.year, Month: k.month, Total: decimal.Zero}
			byMonth[k] = mt
		}
		mt.Count++
		mt.Total = mt.Total.Add(e.Amount)
	}
	for _, mt := range byMonth {
		s.ByMonth = append(s.ByMonth, *mt)
	}
	sort.Slice(s.ByMonth, func(i, j int) bool {
		if s.ByMonth[i].Year != s.ByMonth[j].Year {
			return s.ByMonth[i].Year < s.ByMonth[j].Year
		}
		return s.ByMonth[i].Month < s.ByMonth[j].Month
	})
	return s
}

package application

import (
	"fmt"
	"sort"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/finance/domain"
)

type Granularity string

const (
	ByYear  Granularity = "year"
	ByMonth Granularity = "month"
	ByWeek  Granularity = "week"
)

// Series is a summary flattened into parallel arrays for a chart.
type Series struct {
	Labels       []string  `json:"labels"`
	Income       []float64 `json:"income"`
	Expense      []float64 `json:"expense"`
	Net          []float64 `json:"net"`
	IncomeTotal  float64   `json:"incomeTotal"`
	ExpenseTotal float64   `json:"expenseTotal"`
}

func (s *Series) append(label string, income, expense float64) {
	s.Labels = append(s.Labels, label)
	s.Income = append(s.Income, income)
	s.Expense = append(s.Expense, expense)
	s.Net = append(s.Net, income-expense)
}

// Empty reports whether there is nothing to plot.
func (s Series) Empty() bool {
	return len(s.Labels) == 0
}

var monthByName = func() map[string]time.Month {
	m := make(map[string]time.Month, 12)
	for month := time.January; month <= time.December; month++ {
		m[month.String()] = month
	}
	return m
}()

type monthEntry struct {
	month   time.Month
	summary domain.MonthSummary
}

func sortedMonths(months map[string]domain.MonthSummary) []monthEntry {
	out := make([]monthEntry, 0, len(months))
	for name, summary := range months {
		month, ok := monthByName[name]
		if !ok {
			continue
		}
		out = append(out, monthEntry{month: month, summary: summary})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].month < out[j].month })
	return out
}

// weekOrder places ISO weeks that straddle a year boundary on the right side
// of the calendar month they were reported under.
func weekOrder(month time.Month, week int) int {
	if month == time.January && week >= 52 {
		return 0
	}
	if month == time.December && week == 1 {
		return 54
	}
	return week
}

// ChartSeries reshapes a backend summary into chronological points.
func ChartSeries(summary domain.Summary, granularity Granularity) Series {
	years := make([]int, 0, len(summary))
	for year := range summary {
		years = append(years, year)
	}
	sort.Ints(years)

	var series Series
	for _, year := range years {
		ys := summary[year]
		series.IncomeTotal += ys.IncomeTotal
		series.ExpenseTotal += ys.ExpenseTotal

		if granularity == ByYear {
			series.append(fmt.Sprint(year), ys.IncomeTotal, ys.ExpenseTotal)
			continue
		}
		for _, entry := range sortedMonths(ys.Months) {
			if granularity == ByMonth {
				series.append(fmt.Sprintf("%s %d", entry.month.String()[:3], year), entry.summary.IncomeTotal, entry.summary.ExpenseTotal)
				continue
			}
			weeks := append([]domain.WeekSummary(nil), entry.summary.Weeks...)
			sort.SliceStable(weeks, func(i, j int) bool {
				return weekOrder(entry.month, weeks[i].Week) < weekOrder(entry.month, weeks[j].Week)
			})
			for _, w := range weeks {
				label := fmt.Sprintf("W%02d %d", w.Week, year)
				last := len(series.Labels) - 1
				// A week split across two months is plotted once.
				if last >= 0 && series.Labels[last] == label {
					series.Income[last] += w.IncomeTotal
					series.Expense[last] += w.ExpenseTotal
					series.Net[last] = series.Income[last] - series.Expense[last]
					continue
				}
				series.append(label, w.IncomeTotal, w.ExpenseTotal)
			}
		}
	}
	return series
}

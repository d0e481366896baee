package domain

// Summary holds backend-computed income and expense totals keyed by year.
type Summary map[int]YearSummary

type YearSummary struct {
	Year         int                     `json:"year"`
	IncomeTotal  float64                 `json:"incomeTotal"`
	ExpenseTotal float64                 `json:"expenseTotal"`
	Months       map[string]MonthSummary `json:"months"` // keyed by English month name
}

type MonthSummary struct {
	IncomeTotal  float64       `json:"incomeTotal"`
	ExpenseTotal float64       `json:"expenseTotal"`
	Weeks        []WeekSummary `json:"weeks"`
}

type WeekSummary struct {
	Week         int     `json:"week"` // ISO week number
	IncomeTotal  float64 `json:"incomeTotal"`
	ExpenseTotal float64 `json:"expenseTotal"`
}

// CategoryTotal is the spend or income of one category over a period.
type CategoryTotal struct {
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Type         string  `json:"type"`
	Total        float64 `json:"total"`
}

// GlobalAnalytics aggregates figures across every user.
type GlobalAnalytics struct {
	TotalUsers        int             `json:"totalUsers"`
	ActiveUsers       int             `json:"activeUsers"`
	TotalTransactions int             `json:"totalTransactions"`
	TotalIncome       float64         `json:"totalIncome"`
	TotalExpense      float64         `json:"totalExpense"`
	Summary           Summary         `json:"summary"`
	TopCategories     []CategoryTotal `json:"topCategories"`
}

package core

// CategoryAmount represents a monthly amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Amount   float64  `json:"amount"`
}

// Savings are the estimated yearly savings of annual billing, in KRW.
type Savings struct {
	Current   float64 `json:"current"`
	Potential float64 `json:"potential"`
}

// MonthSpend is one point of the spending history chart.
type MonthSpend struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"` // 1-12
	Amount float64 `json:"amount"`
}

// UpcomingBilling pairs a subscription with its distance to the next charge.
type UpcomingBilling struct {
	Subscription Subscription `json:"subscription"`
	DaysUntil    int          `json:"daysUntil"`
}

// Overview is the dashboard summary for one user on one day.
type Overview struct {
	Date         Date              `json:"date"`
	Rate         float64           `json:"exchangeRate"`
	MonthlyTotal float64           `json:"monthlyTotal"`
	YearlyTotal  float64           `json:"yearlyTotal"`
	ActiveCount  int               `json:"activeCount"`
	TotalCount   int               `json:"totalCount"`
	ByCategory   []CategoryAmount  `json:"byCategory"`
	Upcoming     []UpcomingBilling `json:"upcoming"`
	Savings      Savings           `json:"savings"`
	History      []MonthSpend      `json:"history"`
}

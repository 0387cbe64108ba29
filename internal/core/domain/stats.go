package domain

import "github.com/shopspring/decimal"

// CategoryStat is one slice of the per-category breakdown.
type CategoryStat struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AggregateStatistics is a server-computed snapshot scoped to the
// filter criteria active when it was requested. It is not kept in sync
// with later mutations; callers refresh it explicitly.
type AggregateStatistics struct {
	TotalAmount   decimal.Decimal           `json:"totalAmount"`
	TotalReceipts int                       `json:"totalReceipts"`
	AverageAmount decimal.Decimal           `json:"averageAmount"`
	ByCategory    map[Category]CategoryStat `json:"byCategory"`
}

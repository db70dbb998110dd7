package domain

import "time"

// Типы событий в истории продажи.
const (
	TimelineSaleCommitted   = "sale.committed"
	TimelineSaleVoided      = "sale.voided"
	TimelineSaleCompensated = "sale.compensated"
)

// TimelineEvent описывает событие в жизненном цикле продажи.
type TimelineEvent struct {
	SaleID   string
	Type     string
	Reason   string
	Occurred time.Time
}

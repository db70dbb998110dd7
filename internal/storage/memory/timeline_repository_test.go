package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestTimelineRepository_AppendKeepsChronology(t *testing.T) {
	repo := NewTimelineRepository()
	base := time.Now().UTC()

	_ = repo.Append(domain.TimelineEvent{SaleID: "s-1", Type: domain.TimelineSaleVoided, Occurred: base.Add(time.Minute)})
	_ = repo.Append(domain.TimelineEvent{SaleID: "s-1", Type: domain.TimelineSaleCommitted, Occurred: base})
	_ = repo.Append(domain.TimelineEvent{SaleID: "s-2", Type: domain.TimelineSaleCommitted})

	events, err := repo.List("s-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.TimelineSaleCommitted || events[1].Type != domain.TimelineSaleVoided {
		t.Fatalf("unexpected order: %+v", events)
	}

	other, _ := repo.List("s-2")
	if len(other) != 1 || other[0].Occurred.IsZero() {
		t.Fatalf("expected occurred to be filled, got %+v", other)
	}
}

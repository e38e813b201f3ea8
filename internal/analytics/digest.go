package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/setlistapp/setlist/internal/models"
	"gorm.io/gorm"
)

// DailyReport holds ingested-event metrics for a 24-hour period.
type DailyReport struct {
	PeriodStart  time.Time
	PeriodEnd    time.Time
	TotalEvents  int
	ActiveEvents int // distinct event sessions with telemetry
	ByName       []NameCount
}

// NameCount holds a per-event-name count.
type NameCount struct {
	Name  string
	Count int
}

// BuildDailyDigest queries the last 24 hours of ingested analytics events
// and returns a report. Returns nil when there was no activity.
func BuildDailyDigest(db *gorm.DB) (*DailyReport, error) {
	now := time.Now()
	since := now.Add(-24 * time.Hour)

	report := &DailyReport{
		PeriodStart: since,
		PeriodEnd:   now,
	}

	var total int64
	if err := db.Model(&models.AnalyticsEvent{}).
		Where("created_at >= ? AND created_at < ?", since, now).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("analytics: daily digest: %w", err)
	}
	report.TotalEvents = int(total)

	// Suppress when no activity.
	if report.TotalEvents == 0 {
		return nil, nil
	}

	var active int64
	db.Model(&models.AnalyticsEvent{}).
		Where("created_at >= ? AND created_at < ? AND event_id != ?", since, now, "").
		Distinct("event_id").
		Count(&active)
	report.ActiveEvents = int(active)

	var rows []NameCount
	db.Model(&models.AnalyticsEvent{}).
		Select("name, count(*) as count").
		Where("created_at >= ? AND created_at < ?", since, now).
		Group("name").
		Order("count DESC").
		Scan(&rows)
	report.ByName = rows

	return report, nil
}

// FormatDaily renders a report as a one-line log summary.
func FormatDaily(r *DailyReport) string {
	parts := make([]string, 0, len(r.ByName))
	for _, nc := range r.ByName {
		parts = append(parts, fmt.Sprintf("%s=%d", nc.Name, nc.Count))
	}
	return fmt.Sprintf("analytics digest: %d events across %d sessions (%s)",
		r.TotalEvents, r.ActiveEvents, strings.Join(parts, " "))
}

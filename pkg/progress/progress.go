// Package progress reconstructs a plan's payment timeline from its payment,
// ledger, setup and approval records, and computes milestone progress against
// the plan price.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/adesina/coopledger/pkg/models"
	"github.com/shopspring/decimal"
)

// MilestonePercents are the fixed completion thresholds, ascending.
var MilestonePercents = [4]int{25, 50, 75, 100}

var hundred = decimal.NewFromInt(100)

// Builder assembles timelines. Now supplies the substitute timestamp for
// records that carry none; it is a field so tests can pin it.
type Builder struct {
	Now func() time.Time
}

// NewBuilder returns a Builder using the wall clock.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// eventTime is the single place a missing timestamp becomes "now". The
// build clock is captured once per build, so all undated records in one
// timeline share the same substitute and sort to the top of the descending
// display together.
func eventTime(ts *time.Time, now time.Time) time.Time {
	if ts != nil {
		return *ts
	}
	return now
}

// BuildTimeline merges a plan's records into one display timeline, most
// recent first. Ledger entries participate only when their direction is
// credit; the plan itself contributes a single setup event; approvals
// contribute one event each once approved. Equal timestamps keep input
// order, so identical inputs produce identical output.
func (b *Builder) BuildTimeline(payments []models.PaymentRecord, credits []models.LedgerEntry, plan *models.PaymentPlan, approvals []models.ScheduleApproval) []models.TimelineEvent {
	now := b.now()
	events := make([]models.TimelineEvent, 0, len(payments)+len(credits)+len(approvals)+1)

	for _, p := range payments {
		status := models.EventStatusPending
		if p.Status.Completed() {
			status = models.EventStatusCompleted
		}
		amount := p.Amount
		label := models.MethodLabel(p.Method)
		events = append(events, models.TimelineEvent{
			Type:        models.EventTypePayment,
			Title:       "Payment via " + label,
			Description: fmt.Sprintf("%s payment of %s", label, amount.StringFixed(2)),
			Status:      status,
			Amount:      &amount,
			Timestamp:   eventTime(p.Timestamp, now),
			Source:      label,
		})
	}

	for _, c := range credits {
		if c.Direction != models.DirectionCredit {
			continue
		}
		status := models.EventStatusPending
		if c.Status.Completed() {
			status = models.EventStatusCompleted
		}
		amount := c.Amount
		label := models.MethodLabel(c.Source)
		ts := c.CreatedAt
		if c.PaidAt != nil {
			ts = *c.PaidAt
		}
		events = append(events, models.TimelineEvent{
			Type:        models.EventTypePayment,
			Title:       "Payment via " + label,
			Description: fmt.Sprintf("%s credit of %s", label, amount.StringFixed(2)),
			Status:      status,
			Amount:      &amount,
			Timestamp:   ts,
			Source:      label,
		})
	}

	if plan != nil {
		events = append(events, models.TimelineEvent{
			Type:        models.EventTypePlanSetup,
			Title:       "Payment plan created",
			Description: fmt.Sprintf("Plan for %s set up", plan.PropertyTitle),
			Status:      models.EventStatusCompleted,
			Timestamp:   plan.CreatedAt,
		})
	}

	for _, a := range approvals {
		if !a.Approved {
			continue
		}
		events = append(events, models.TimelineEvent{
			Type:      models.EventTypeScheduleApproval,
			Title:     fmt.Sprintf("%s schedule approved", models.MethodLabel(string(a.Kind))),
			Status:    models.EventStatusCompleted,
			Timestamp: eventTime(a.ApprovedAt, now),
			Source:    string(a.Kind),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

// MilestoneReport carries the four milestones plus the reconciliation of the
// two "total paid" figures: the authoritative total supplied by the backend
// and the sum reconstructed from completed payment events. Achieved uses the
// authoritative figure; AchievedAt uses the reconstructed running sum, so a
// milestone can be achieved with no date when the two disagree.
type MilestoneReport struct {
	Milestones    [4]models.Milestone `json:"milestones"`
	Reconstructed decimal.Decimal     `json:"reconstructed_total"`
	Authoritative decimal.Decimal     `json:"authoritative_total"`
	TotalsDiverge bool                `json:"totals_diverge"`
	Divergence    decimal.Decimal     `json:"divergence"`
}

// ComputeMilestones evaluates the four fixed milestones against price.
// A non-positive price makes no milestone achievable.
func ComputeMilestones(timeline []models.TimelineEvent, price, totalPaid decimal.Decimal) MilestoneReport {
	report := MilestoneReport{
		Authoritative: totalPaid,
	}
	for i, pct := range MilestonePercents {
		report.Milestones[i] = models.Milestone{Percent: pct}
	}

	completed := completedPayments(timeline)
	running := decimal.Zero
	for _, e := range completed {
		running = running.Add(*e.Amount)
	}
	report.Reconstructed = running

	// A non-positive price makes every threshold degenerate; no milestone is
	// achievable and no divergence is reported.
	if price.LessThanOrEqual(decimal.Zero) {
		report.Divergence = decimal.Zero
		return report
	}

	report.Divergence = totalPaid.Sub(running)
	report.TotalsDiverge = !report.Divergence.IsZero()

	for i, pct := range MilestonePercents {
		threshold := price.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
		report.Milestones[i].Achieved = totalPaid.GreaterThanOrEqual(threshold)

		sum := decimal.Zero
		for _, e := range completed {
			sum = sum.Add(*e.Amount)
			if sum.GreaterThanOrEqual(threshold) {
				ts := e.Timestamp
				report.Milestones[i].AchievedAt = &ts
				break
			}
		}
	}
	return report
}

// SourceBreakdown aggregates completed payments for one source label.
type SourceBreakdown struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds aggregate statistics over the completed payments of a
// timeline.
type Summary struct {
	Count    int                        `json:"count"`
	Total    decimal.Decimal            `json:"total"`
	Mean     decimal.Decimal            `json:"mean"`
	BySource map[string]SourceBreakdown `json:"by_source"`
}

// Stats computes completed-payment statistics in a single pass.
func Stats(timeline []models.TimelineEvent) Summary {
	summary := Summary{
		Total:    decimal.Zero,
		Mean:     decimal.Zero,
		BySource: make(map[string]SourceBreakdown),
	}
	for _, e := range timeline {
		if e.Type != models.EventTypePayment || e.Status != models.EventStatusCompleted || e.Amount == nil {
			continue
		}
		summary.Count++
		summary.Total = summary.Total.Add(*e.Amount)
		group := summary.BySource[e.Source]
		group.Count++
		group.Total = group.Total.Add(*e.Amount)
		summary.BySource[e.Source] = group
	}
	if summary.Count > 0 {
		summary.Mean = summary.Total.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}
	return summary
}

// completedPayments returns the completed payment events with amounts in
// chronological ascending order, independent of the display ordering.
func completedPayments(timeline []models.TimelineEvent) []models.TimelineEvent {
	var out []models.TimelineEvent
	for _, e := range timeline {
		if e.Type == models.EventTypePayment && e.Status == models.EventStatusCompleted && e.Amount != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

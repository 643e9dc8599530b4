package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

// Section is one titled block of a digest. Priority orders sections in
// the rendered message and nothing else.
type Section struct {
	Type     string        `json:"type"`
	Title    string        `json:"title"`
	Priority int           `json:"priority"`
	Items    []model.Alert `json:"items"`
}

const maxItemsPerDigest = 50

var sectionLayout = []struct {
	category model.AlertCategory
	title    string
	priority int
}{
	{model.AlertCategoryParking, "Parking & Street Cleaning", 1},
	{model.AlertCategoryTransit, "Subway & Bus Service", 2},
	{model.AlertCategoryEvents, "Events & Street Closures", 3},
}

type contentBuilder struct {
	alerts repository.AlertRepository
	now    func() time.Time
}

func newContentBuilder(alerts repository.AlertRepository) *contentBuilder {
	return &contentBuilder{alerts: alerts, now: time.Now}
}

// Load fetches the slot's look-back window once; the per-recipient
// filtering happens in buildSections so one query serves a whole run.
func (b *contentBuilder) Load(ctx context.Context, cfg SlotConfig) ([]*model.Alert, error) {
	since := b.now().Add(-cfg.LookBack)
	alerts, err := b.alerts.ListCreatedSince(ctx, since, maxItemsPerDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to load digest content: %w", err)
	}
	return alerts, nil
}

// relevantTo reports whether an alert belongs in this subscriber's
// digest. Citywide alerts carry no neighborhood and reach everyone;
// scoped alerts only reach subscribers following that neighborhood.
func relevantTo(sub *model.Subscriber, alert *model.Alert) bool {
	if alert.Neighborhood == "" || sub.Neighborhood == "" {
		return true
	}
	return strings.EqualFold(alert.Neighborhood, sub.Neighborhood)
}

// buildSections assembles the digest sections for one subscriber from
// the already loaded window. Zero sections means there is nothing
// worth mailing this subscriber, even when peers in the same run do
// get content.
func buildSections(sub *model.Subscriber, alerts []*model.Alert) []Section {
	byCategory := make(map[model.AlertCategory][]model.Alert)
	for _, a := range alerts {
		if !relevantTo(sub, a) {
			continue
		}
		byCategory[a.Category] = append(byCategory[a.Category], *a)
	}

	var sections []Section
	for _, layout := range sectionLayout {
		items := byCategory[layout.category]
		if len(items) == 0 {
			continue
		}
		sections = append(sections, Section{
			Type:     string(layout.category),
			Title:    layout.title,
			Priority: layout.priority,
			Items:    items,
		})
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Priority < sections[j].Priority
	})
	return sections
}

// DigestBuilder rebuilds a recipient's slot digest outside a scheduled
// run; the reconciliation sweep uses it to retry a stranded pending
// record.
type DigestBuilder struct {
	content     *contentBuilder
	subscribers repository.SubscriberRepository
}

func NewDigestBuilder(alerts repository.AlertRepository, subscribers repository.SubscriberRepository) *DigestBuilder {
	return &DigestBuilder{content: newContentBuilder(alerts), subscribers: subscribers}
}

// Build reassembles the digest for one recipient of the slot owning
// notificationType. ok is false when the recipient has unsubscribed or
// currently has zero sections to send.
func (b *DigestBuilder) Build(ctx context.Context, recipient, notificationType string, day time.Time) (subject, body string, ok bool, err error) {
	cfg, err := SlotConfigByNotificationType(notificationType)
	if err != nil {
		return "", "", false, err
	}

	sub, err := b.subscribers.FindByEmail(ctx, recipient)
	if errors.Is(err, repository.ErrNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}

	alerts, err := b.content.Load(ctx, cfg)
	if err != nil {
		return "", "", false, err
	}
	sections := buildSections(sub, alerts)
	if len(sections) == 0 {
		return "", "", false, nil
	}
	subject, body = renderDigest(cfg, day, sections)
	return subject, body, true, nil
}

// renderDigest produces the subject and a minimal HTML body. Real
// template rendering lives in the web app; the coordination core only
// needs something legible on the wire.
func renderDigest(cfg SlotConfig, day time.Time, sections []Section) (subject, body string) {
	total := 0
	for _, s := range sections {
		total += len(s.Items)
	}
	subject = fmt.Sprintf("Curbwise %s digest: %d alert(s) for %s",
		cfg.Slot, total, day.Format("Mon Jan 2"))

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, section := range sections {
		sb.WriteString(fmt.Sprintf("<h2>%s</h2><ul>", section.Title))
		for _, item := range section.Items {
			sb.WriteString(fmt.Sprintf("<li><strong>%s</strong>", item.Title))
			if item.Neighborhood != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", item.Neighborhood))
			}
			if item.Summary != "" {
				sb.WriteString(fmt.Sprintf(": %s", item.Summary))
			}
			sb.WriteString("</li>")
		}
		sb.WriteString("</ul>")
	}
	sb.WriteString("</body></html>")
	return subject, sb.String()
}

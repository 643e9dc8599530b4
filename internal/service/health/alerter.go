package health

import (
	"context"
	"fmt"

	"github.com/curbwise/alerts-api/internal/email"
	"github.com/curbwise/alerts-api/internal/model"
)

// Alerter delivers operator alerts. Implementations may fail; callers
// log and move on.
type Alerter interface {
	JobFailed(ctx context.Context, jobName, errorMessage string) error
	JobMissed(ctx context.Context, snapshot *model.JobHealthSnapshot) error
	JobRecovered(ctx context.Context, jobName string) error
}

type emailAlerter struct {
	provider email.Provider
	operator string
}

// NewEmailAlerter sends operator alerts through the same provider the
// digests use, with a fixed subject convention per alert type.
func NewEmailAlerter(provider email.Provider, operatorEmail string) Alerter {
	return &emailAlerter{provider: provider, operator: operatorEmail}
}

func (a *emailAlerter) JobFailed(ctx context.Context, jobName, errorMessage string) error {
	subject := fmt.Sprintf("[curbwise-alert] job failed: %s", jobName)
	body := fmt.Sprintf(
		"<p>Job <strong>%s</strong> has failed on its last two runs.</p><p>Last error: %s</p>",
		jobName, errorMessage)
	_, err := a.provider.Send(ctx, a.operator, subject, body)
	return err
}

func (a *emailAlerter) JobMissed(ctx context.Context, snapshot *model.JobHealthSnapshot) error {
	subject := fmt.Sprintf("[curbwise-alert] job not running: %s", snapshot.JobName)
	body := fmt.Sprintf(
		"<p>Job <strong>%s</strong> is <strong>%s</strong>: %d missed run(s), %d consecutive failure(s).</p>",
		snapshot.JobName, snapshot.Status, snapshot.MissedRuns, snapshot.ConsecutiveFailures)
	_, err := a.provider.Send(ctx, a.operator, subject, body)
	return err
}

func (a *emailAlerter) JobRecovered(ctx context.Context, jobName string) error {
	subject := fmt.Sprintf("[curbwise-alert] job recovered: %s", jobName)
	body := fmt.Sprintf("<p>Job <strong>%s</strong> succeeded after repeated failures.</p>", jobName)
	_, err := a.provider.Send(ctx, a.operator, subject, body)
	return err
}

// NopAlerter discards alerts; used in tests and local development.
type NopAlerter struct{}

func (NopAlerter) JobFailed(context.Context, string, string) error           { return nil }
func (NopAlerter) JobMissed(context.Context, *model.JobHealthSnapshot) error { return nil }
func (NopAlerter) JobRecovered(context.Context, string) error                { return nil }

package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// fakeDeliveryRepo enforces the natural-key uniqueness in memory, which
// is all the idempotency algorithm relies on.
type fakeDeliveryRepo struct {
	mu      sync.Mutex
	records map[string]*model.DeliveryRecord
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{records: make(map[string]*model.DeliveryRecord)}
}

func key(recipient, notificationType string, targetDate time.Time) string {
	return fmt.Sprintf("%s|%s|%s", recipient, notificationType, model.TruncateToDay(targetDate).Format("2006-01-02"))
}

func (f *fakeDeliveryRepo) Create(_ context.Context, rec *model.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(rec.Recipient, rec.NotificationType, rec.TargetDate)
	if _, exists := f.records[k]; exists {
		return repository.ErrDuplicateKey
	}
	rec.ID = uuid.New()
	rec.TargetDate = model.TruncateToDay(rec.TargetDate)
	clone := *rec
	f.records[k] = &clone
	return nil
}

func (f *fakeDeliveryRepo) FindByKey(_ context.Context, recipient, notificationType string, targetDate time.Time) (*model.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key(recipient, notificationType, targetDate)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeDeliveryRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id && rec.Status == model.DeliveryStatusPending {
			rec.Status = model.DeliveryStatusSent
			rec.SentAt = &sentAt
			rec.ProviderMessageID = &providerMessageID
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDeliveryRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id && rec.Status == model.DeliveryStatusPending {
			rec.Status = model.DeliveryStatusFailed
			rec.ErrorMessage = &errorMessage
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDeliveryRepo) Reopen(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ID == id && rec.Status == model.DeliveryStatusFailed {
			rec.Status = model.DeliveryStatusPending
			rec.ErrorMessage = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDeliveryRepo) FindStalePending(_ context.Context, olderThan time.Time, limit int) ([]*model.DeliveryRecord, error) {
	return nil, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakeProvider) Send(_ context.Context, to, subject, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("msg-%d", p.calls), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestService(repo repository.DeliveryRepository, provider *fakeProvider) Service {
	return NewService(repo, provider, logger.Nop(), metrics.NewTestMetrics())
}

func testMessage() *Message {
	return &Message{Subject: "subject", Body: "<p>body</p>"}
}

func TestSendCreatesRecordAndSends(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 9, 15, 0, 0, time.UTC)
	result, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, result.Outcome)
	assert.Equal(t, "msg-1", result.ProviderMessageID)
	assert.Equal(t, 1, provider.callCount())

	rec, err := repo.FindByKey(context.Background(), "a@x.com", "daily_digest", day)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, rec.Status)
	require.NotNil(t, rec.ProviderMessageID)
	assert.Equal(t, "msg-1", *rec.ProviderMessageID)
}

func TestSendSecondCallReturnsAlreadySent(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	first, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, first.Outcome)

	second, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySent, second.Outcome)
	assert.Equal(t, first.ProviderMessageID, second.ProviderMessageID)
	assert.Equal(t, 1, provider.callCount(), "side effect must happen exactly once")
}

func TestSendSameDayDifferentTimeIsSameOccasion(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	morning := time.Date(2026, 1, 31, 7, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 1, 31, 22, 0, 0, 0, time.UTC)

	first, err := svc.Send(context.Background(), "a@x.com", "daily_digest", morning, testMessage())
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, first.Outcome)

	second, err := svc.Send(context.Background(), "a@x.com", "daily_digest", evening, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySent, second.Outcome)
	assert.Equal(t, 1, provider.callCount())
}

func TestConcurrentSendsProduceOneProviderCall(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	const concurrency = 10

	results := make(chan Result, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	sent := 0
	for res := range results {
		switch res.Outcome {
		case OutcomeSent:
			sent++
		case OutcomeAlreadySent, OutcomeInProgress:
		default:
			t.Fatalf("unexpected outcome %q", res.Outcome)
		}
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, provider.callCount())
}

func TestSendProviderFailureRecordsFailed(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{err: errors.New("smtp 554")}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	result, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err, "provider failure must not escape the sender boundary")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Error, "smtp 554")

	rec, err := repo.FindByKey(context.Background(), "a@x.com", "daily_digest", day)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusFailed, rec.Status)
}

func TestSendRefusesExistingFailedRecord(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{err: errors.New("smtp 554")}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)

	// Provider recovers, but the failed record still blocks the pass.
	provider.err = nil
	result, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, result.Outcome)
	assert.Equal(t, 1, provider.callCount())
}

func TestRetryReopensFailedRecord(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{err: errors.New("smtp 554")}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)

	provider.err = nil
	result, err := svc.Retry(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, result.Outcome)

	rec, err := repo.FindByKey(context.Background(), "a@x.com", "daily_digest", day)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, rec.Status)
}

func TestRetryOnSentRecordIsNoop(t *testing.T) {
	repo := newFakeDeliveryRepo()
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.Send(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)

	result, err := svc.Retry(context.Background(), "a@x.com", "daily_digest", day, testMessage())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySent, result.Outcome)
	assert.Equal(t, 1, provider.callCount())
}

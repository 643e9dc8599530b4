package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwise/alerts-api/internal/service/schedule"
)

type fakeSchedulerService struct {
	summary *schedule.RunSummary
	err     error
	ran     []schedule.Slot
}

func (f *fakeSchedulerService) Run(_ context.Context, slot schedule.Slot) (*schedule.RunSummary, error) {
	f.ran = append(f.ran, slot)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func newTriggerRouter(scheduler schedule.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(scheduler, nil, nil)
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestRunTimeSlotReturnsSummary(t *testing.T) {
	scheduler := &fakeSchedulerService{summary: &schedule.RunSummary{
		Job:     "email-timeslot-morning",
		Slot:    schedule.SlotMorning,
		Outcome: schedule.RunCompleted,
		Sent:    3,
	}}
	router := newTriggerRouter(scheduler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/timeslots/morning", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []schedule.Slot{schedule.SlotMorning}, scheduler.ran)

	var resp struct {
		Status string              `json:"status"`
		Data   schedule.RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, schedule.RunCompleted, resp.Data.Outcome)
	assert.Equal(t, 3, resp.Data.Sent)
}

func TestRunTimeSlotRejectsUnknownSlot(t *testing.T) {
	scheduler := &fakeSchedulerService{}
	router := newTriggerRouter(scheduler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/timeslots/midnight", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, scheduler.ran, "bad slots never reach the scheduler")
}

func TestRunTimeSlotSurfacesJobError(t *testing.T) {
	scheduler := &fakeSchedulerService{err: errors.New("db gone")}
	router := newTriggerRouter(scheduler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/timeslots/evening", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunTimeSlotAcceptsGet(t *testing.T) {
	scheduler := &fakeSchedulerService{summary: &schedule.RunSummary{Outcome: schedule.RunSkippedLock}}
	router := newTriggerRouter(scheduler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/timeslots/midday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

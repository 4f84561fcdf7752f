package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeGenerator struct {
	reportID string
	retErr   error
}

func (f *fakeGenerator) GenerateReport(_ context.Context, reportID string) error {
	f.reportID = reportID
	return f.retErr
}

func reportTask(t *testing.T, reportID string) *asynq.Task {
	payload, err := json.Marshal(tasks.GenerateReportPayload{ReportID: reportID})
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeGenerateReport, payload)
}

func TestHandleGenerateReportSuccess(t *testing.T) {
	gen := &fakeGenerator{}
	h := NewReportHandler(gen, zaptest.NewLogger(t))

	require.NoError(t, h.HandleGenerateReport(context.Background(), reportTask(t, "r-1")))
	assert.Equal(t, "r-1", gen.reportID)
}

func TestHandleGenerateReportRetriesTransientErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewReportHandler(&fakeGenerator{retErr: boom}, zaptest.NewLogger(t))

	err := h.HandleGenerateReport(context.Background(), reportTask(t, "r-2"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleGenerateReportSkipsRetry(t *testing.T) {
	h := NewReportHandler(&fakeGenerator{retErr: &audit.NotFoundError{Resource: "report", Key: "r-3"}}, zaptest.NewLogger(t))
	assert.ErrorIs(t, h.HandleGenerateReport(context.Background(), reportTask(t, "r-3")), asynq.SkipRetry)

	h = NewReportHandler(&fakeGenerator{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, h.HandleGenerateReport(context.Background(), asynq.NewTask(tasks.TypeGenerateReport, []byte("not-json"))), asynq.SkipRetry)
	assert.ErrorIs(t, h.HandleGenerateReport(context.Background(), reportTask(t, "")), asynq.SkipRetry)
}

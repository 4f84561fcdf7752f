package queue

import (
	"encoding/json"
	"testing"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportTask(t *testing.T) {
	task, err := NewReportTask("r-1")
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeGenerateReport, task.Type())

	var p tasks.GenerateReportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "r-1", p.ReportID)
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "reports", QueueName(config.AuditConfig{}))
	assert.Equal(t, "audit-reports", QueueName(config.AuditConfig{ReportQueue: "audit-reports"}))
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 报表任务队列客户端
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient 创建任务队列客户端
func NewClient(redisCfg *config.RedisConfig, auditCfg config.AuditConfig) *Client {
	return &Client{
		client: asynq.NewClient(infra.AsynqRedisOpt(redisCfg)),
		queue:  QueueName(auditCfg),
	}
}

// ScheduleReport 投递报表生成任务，同一报表只会排队一次
func (c *Client) ScheduleReport(ctx context.Context, reportID string) error {
	task, err := NewReportTask(reportID)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.TaskID(reportID),
	)
	if err != nil {
		return fmt.Errorf("投递报表任务失败: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}

// NewReportTask 构造报表任务
func NewReportTask(reportID string) (*asynq.Task, error) {
	payload, err := json.Marshal(tasks.GenerateReportPayload{ReportID: reportID})
	if err != nil {
		return nil, fmt.Errorf("序列化任务载荷失败: %w", err)
	}
	return asynq.NewTask(tasks.TypeGenerateReport, payload), nil
}

// QueueName 报表队列名，未配置时为 reports
func QueueName(cfg config.AuditConfig) string {
	if cfg.ReportQueue == "" {
		return "reports"
	}
	return cfg.ReportQueue
}

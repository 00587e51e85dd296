package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/internal/service"
	"todo-lifecycle/internal/status"
	"todo-lifecycle/pkg/logger"
)

// CommandHandler applies queued commands. *service.TodoService satisfies it,
// so queued mutations pass through the same immutability check as HTTP ones.
type CommandHandler interface {
	Create(ctx context.Context, description string, dueAt time.Time) (models.Todo, error)
	UpdateDescription(ctx context.Context, id int64, description string) (models.Todo, error)
	UpdateStatus(ctx context.Context, id int64, to models.Status) (models.Todo, error)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Run consumes todo commands until ctx is cancelled. One consumer per
// process; scale by running more replicas in the same consumer group.
func Run(ctx context.Context, cfg ConsumerConfig, h CommandHandler) error {
	if len(cfg.Brokers) == 0 {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var processed int64
	logger.Info(ctx, "Kafka consumer started", "topic", cfg.Topic, "group", cfg.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Kafka consumer stopped", "processed", atomic.LoadInt64(&processed))
				return nil
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, h, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
		}
		// Commit failures too so a poison message cannot block the partition.
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
		atomic.AddInt64(&processed, 1)
	}
}

// handleMessage decodes and applies one command. Rejections such as an
// immutable todo are expected and only logged at debug level.
func handleMessage(ctx context.Context, h CommandHandler, payload []byte) error {
	var cmd models.TodoCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if cmd.RequestID != "" {
		ctx = logger.WithRequestID(ctx, cmd.RequestID)
	}

	err := apply(ctx, h, cmd)
	if err != nil && service.IsExpected(err) {
		logger.Debug(ctx, "Command rejected", "action", cmd.Action, "id", cmd.ID, "reason", err.Error())
		return nil
	}
	return err
}

func apply(ctx context.Context, h CommandHandler, cmd models.TodoCommand) error {
	switch cmd.Action {
	case models.ActionCreate:
		var due time.Time
		if cmd.DueAt != nil {
			due = *cmd.DueAt
		}
		_, err := h.Create(ctx, cmd.Description, due)
		return err
	case models.ActionUpdateDescription:
		_, err := h.UpdateDescription(ctx, cmd.ID, cmd.Description)
		return err
	case models.ActionUpdateStatus:
		to, err := status.Parse(cmd.Status)
		if err != nil {
			return err
		}
		_, err = h.UpdateStatus(ctx, cmd.ID, to)
		return err
	default:
		logger.Debug(ctx, "Ignoring unknown command", "action", cmd.Action)
		return nil
	}
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/pkg/logger"
)

// ErrDisabled is returned when publishing without any configured broker.
var ErrDisabled = errors.New("command queue is disabled")

// EnsureTopic creates the command topic with the given partition count. It is
// idempotent; failures are logged and the app keeps running.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", topic, "partitions", partitions)
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends todo commands to the command topic.
type Publisher struct {
	w MessageWriter
}

// NewPublisher returns a publisher writing synchronously to topic. With no
// brokers the publisher is disabled and Publish returns ErrDisabled.
func NewPublisher(ctx context.Context, brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return &Publisher{}
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 0,
		RequiredAcks: kafka.RequireOne,
	}}
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{w: w}
}

// Enabled reports whether commands can be published.
func (p *Publisher) Enabled() bool {
	return p != nil && p.w != nil
}

// PublishTodoCommand publishes cmd. Commands for the same todo share a key so
// they land on one partition and are applied in order.
func (p *Publisher) PublishTodoCommand(ctx context.Context, cmd *models.TodoCommand) error {
	if !p.Enabled() {
		return ErrDisabled
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   MessageKey(cmd),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.w.Close()
}

// MessageKey is the todo id, or the action for creates which have no id yet.
func MessageKey(cmd *models.TodoCommand) []byte {
	if cmd.ID == 0 {
		return []byte(cmd.Action)
	}
	return []byte(strconv.FormatInt(cmd.ID, 10))
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-lifecycle/internal/models"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublisher_Disabled(t *testing.T) {
	p := NewPublisher(context.Background(), nil, "todo-commands")
	assert.False(t, p.Enabled())
	err := p.PublishTodoCommand(context.Background(), &models.TodoCommand{Action: models.ActionCreate})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, p.Close())
}

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisherWithWriter(w)

	cmd := &models.TodoCommand{Action: models.ActionUpdateStatus, ID: 12, Status: "done", RequestID: "req-1"}
	require.NoError(t, p.PublishTodoCommand(context.Background(), cmd))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "12", string(w.msgs[0].Key))

	var got models.TodoCommand
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.ActionUpdateStatus, got.Action)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, "req-1", got.RequestID)
}

func TestPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewPublisherWithWriter(&recordingWriter{err: boom})
	err := p.PublishTodoCommand(context.Background(), &models.TodoCommand{Action: models.ActionCreate})
	assert.ErrorIs(t, err, boom)
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, []byte("create"), MessageKey(&models.TodoCommand{Action: models.ActionCreate}))
	assert.Equal(t, []byte("5"), MessageKey(&models.TodoCommand{Action: models.ActionUpdateDescription, ID: 5}))
}

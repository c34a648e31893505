package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/blacktop/sendto/internal/publish"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaSinkDispatch(t *testing.T) {
	writer := &mockWriter{}
	var sent []kafka.Message
	writer.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	sink := NewKafkaSinkWithWriter(writer, "")
	err := sink.Dispatch(context.Background(), publish.PostPublished{Result: publish.Succeeded("telegram", "123")})
	require.NoError(t, err)
	writer.AssertExpectations(t)

	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, []byte("telegram"), msg.Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "post.published", env.Name)
	assert.Equal(t, "telegram", env.Platform)
	assert.True(t, env.Success)
	assert.Equal(t, "123", env.ExternalID)
	_, err = uuid.Parse(env.ID)
	assert.NoError(t, err)
	assert.Equal(t, "event", msg.Headers[0].Key)
}

func TestKafkaSinkWriteError(t *testing.T) {
	writer := &mockWriter{}
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))
	writer.On("Close").Return(nil)

	sink := NewKafkaSinkWithWriter(writer, "custom")
	err := sink.Dispatch(context.Background(), publish.PostFailed{Result: publish.Result{Platform: "slack", Error: "channel_not_found"}})
	assert.ErrorContains(t, err, "post.failed")
	assert.ErrorContains(t, err, "leader not available")
	assert.NoError(t, sink.Close())
}

func TestMulti(t *testing.T) {
	var calls int
	ok := publish.EventSinkFunc(func(context.Context, publish.Event) error {
		calls++
		return nil
	})
	bad := publish.EventSinkFunc(func(context.Context, publish.Event) error {
		calls++
		return errors.New("down")
	})

	err := Multi{bad, nil, ok}.Dispatch(context.Background(), publish.PostPublished{Result: publish.Succeeded("x", "1")})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestLogSink(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})

	sink := NewLogSink(logger)
	require.NoError(t, sink.Dispatch(context.Background(), publish.PostFailed{Result: publish.Result{Platform: "twitter", Error: "Forbidden"}}))
	assert.Contains(t, buf.String(), "post.failed")
	assert.Contains(t, buf.String(), "Forbidden")
}

func TestKafkaConfigEnabled(t *testing.T) {
	assert.False(t, KafkaConfig{}.Enabled())
	assert.True(t, KafkaConfig{Brokers: []string{"localhost:9092"}}.Enabled())
}

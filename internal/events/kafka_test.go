package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	saramamocks "github.com/IBM/sarama/mocks"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testActivity() *domain.Activity {
	return &domain.Activity{
		ID:        "act-1",
		UserID:    "user-123",
		Action:    "login",
		Details:   map[string]interface{}{"success": true},
		IPAddress: "1.2.3.4",
		UserAgent: "curl/8.0",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := saramamocks.NewAsyncProducer(t, cfg)
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.EventType != "auth.login" || env.UserID != "user-123" || env.EventID != "act-1" {
			return fmt.Errorf("unexpected envelope: %+v", env)
		}
		return nil
	})

	p := newKafkaPublisher(producer, "auth.activity", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), testActivity()))

	msg := <-producer.Successes()
	assert.Equal(t, "auth.activity", msg.Topic)
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "user-123", string(key))

	require.NoError(t, p.Close())
}

func TestKafkaPublisher_DeliveryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	producer := saramamocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(errors.New("broker down"))

	p := newKafkaPublisher(producer, "auth.activity", zap.New(core))
	require.NoError(t, p.Publish(context.Background(), testActivity()))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("kafka delivery failed").Len() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishHonoursContext(t *testing.T) {
	producer := saramamocks.NewAsyncProducer(t, nil)
	p := &KafkaPublisher{producer: producer, topic: "auth.activity", log: zap.NewNop()}

	// Nothing reads Input, so only the cancelled context can unblock Publish.
	blocked := &blockingProducer{AsyncProducer: producer, input: make(chan *sarama.ProducerMessage)}
	p.producer = blocked

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, testActivity())
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, producer.Close())
}

type blockingProducer struct {
	sarama.AsyncProducer
	input chan *sarama.ProducerMessage
}

func (b *blockingProducer) Input() chan<- *sarama.ProducerMessage { return b.input }

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), testActivity()))
	require.NoError(t, p.Close())

	entries := logs.FilterMessage("activity event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "auth.login", fields["event_type"])
	assert.Equal(t, "1.2.*.*", fields["ip"])
}

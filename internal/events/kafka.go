package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	"go.uber.org/zap"
)

// KafkaPublisher sends activity events to a Kafka topic, keyed by user id so
// events for one user stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *zap.Logger
	wg       sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return newKafkaPublisher(producer, topic, log), nil
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{producer: producer, topic: topic, log: log}

	p.wg.Add(1)
	go p.drainErrors()

	return p
}

func (p *KafkaPublisher) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		p.log.Warn("kafka delivery failed",
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
		)
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, a *domain.Activity) error {
	payload, err := json.Marshal(newEnvelope(a))
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(a.UserID),
		Value: sarama.ByteEncoder(payload),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and stops the producer.
func (p *KafkaPublisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

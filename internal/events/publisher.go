package events

//go:generate mockgen -destination=../mocks/mock_publisher.go -package=mocks github.com/mapofwonders/auth-service/internal/events Publisher

import (
	"context"
	"time"

	"github.com/mapofwonders/auth-service/internal/auth/domain"
	"github.com/mapofwonders/auth-service/internal/logger"
	"go.uber.org/zap"
)

const schemaVersion = "1"

// Publisher fans activity records out to downstream consumers. Delivery is
// best-effort; callers log and ignore errors.
type Publisher interface {
	Publish(ctx context.Context, activity *domain.Activity) error
	Close() error
}

type envelope struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
}

func newEnvelope(a *domain.Activity) envelope {
	return envelope{
		EventID:   a.ID,
		EventType: "auth." + a.Action,
		UserID:    a.UserID,
		Timestamp: a.CreatedAt.UTC(),
		Version:   schemaVersion,
		Details:   a.Details,
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
	}
}

// LogPublisher writes events to the log. Used when no brokers are configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, a *domain.Activity) error {
	p.log.Info("activity event",
		zap.String("event_type", "auth."+a.Action),
		zap.String("event_id", a.ID),
		zap.String("user_id", a.UserID),
		zap.String("ip", logger.MaskIP(a.IPAddress)),
		zap.Any("details", a.Details),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var (
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*KafkaPublisher)(nil)
)

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/service/status"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/messaging"
)

// StatusSubscriber replays status transitions published by other processes
// to a local listener, e.g. so the api drops its cached critical list when
// the worker flips a flag.
type StatusSubscriber struct {
	subscriber messaging.Subscriber
	topic      string
	listener   status.Listener
	logger     *logger.Logger
}

func NewStatusSubscriber(subscriber messaging.Subscriber, topic string, listener status.Listener, logger *logger.Logger) *StatusSubscriber {
	return &StatusSubscriber{
		subscriber: subscriber,
		topic:      topic,
		listener:   listener,
		logger:     logger,
	}
}

// Run blocks until ctx ends or the subscription closes.
func (s *StatusSubscriber) Run(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to status changes: %w", err)
	}

	s.logger.Info("Listening for status changes", "topic", s.topic)
	for payload := range messages {
		var change model.PatientStatusChange
		if err := json.Unmarshal(payload, &change); err != nil {
			s.logger.Warn("Discarding malformed status change", "topic", s.topic, "error", err.Error())
			continue
		}
		s.listener.OnStatusChange(ctx, change)
	}
	return nil
}

// Package events forwards patient status transitions to a message broker
// for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/messaging"
)

const publishTimeout = 2 * time.Second

type StatusPublisher struct {
	publisher messaging.Publisher
	topic     string
	logger    *logger.Logger
}

func NewStatusPublisher(publisher messaging.Publisher, topic string, logger *logger.Logger) *StatusPublisher {
	return &StatusPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// OnStatusChange publishes the transition. Failures are logged only.
func (p *StatusPublisher) OnStatusChange(ctx context.Context, change model.PatientStatusChange) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, p.topic, change); err != nil {
		p.logger.Error(err, "Failed to publish status change",
			"patient_id", change.PatientID.String(),
			"topic", p.topic)
	}
}

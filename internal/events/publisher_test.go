package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
)

type published struct {
	topic   string
	message interface{}
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, message: message})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestStatusPublisherSendsChange(t *testing.T) {
	pub := &fakePublisher{}
	p := NewStatusPublisher(pub, "patient.status", logger.Nop())

	change := model.PatientStatusChange{PatientID: uuid.New(), IsCritical: true, ChangedAt: time.Now()}
	p.OnStatusChange(context.Background(), change)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "patient.status", pub.sent[0].topic)
	assert.Equal(t, change, pub.sent[0].message)
}

func TestStatusPublisherSwallowsErrors(t *testing.T) {
	p := NewStatusPublisher(&fakePublisher{err: errors.New("broker down")}, "patient.status", logger.Nop())

	assert.NotPanics(t, func() {
		p.OnStatusChange(context.Background(), model.PatientStatusChange{PatientID: uuid.New()})
	})
}

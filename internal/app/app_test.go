package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthtrack-api/internal/config"
	"github.com/jwalitptl/healthtrack-api/internal/model"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database:   config.DatabaseConfig{Driver: config.DriverMemory},
		Reconcile:  config.ReconcileConfig{Dispatcher: config.DispatcherInProcess, Timeout: time.Second},
		Events:     config.EventsConfig{Driver: config.EventsNone},
		Log:        config.LogConfig{Level: "error"},
		Monitoring: config.MonitoringConfig{Namespace: "test"},
	}
}

func TestNewWithMemoryStorage(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Empty(t, a.Checks())
	assert.Nil(t, a.EventListener())
	assert.Error(t, a.RequireRedis())

	p := &model.Patient{Base: model.Base{ID: uuid.New()}}
	require.NoError(t, a.Patients.Create(context.Background(), p))

	svc := a.NewStatusService()
	changed, err := svc.Reconcile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

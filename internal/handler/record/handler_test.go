package record

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthtrack-api/internal/middleware"
	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository/memory"
	"github.com/jwalitptl/healthtrack-api/internal/service/record"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
	"github.com/jwalitptl/healthtrack-api/pkg/validator"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(uuid.UUID) {}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func setup(t *testing.T) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Jane Doe"}
	require.NoError(t, store.Patients().Create(context.Background(), p))

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	svc := record.NewService(store.Patients(), store.Readings(), noopDispatcher{}, validator.New(), logger.Nop(), m)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, p.ID
}

func do(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestSubmitReadings(t *testing.T) {
	r, patientID := setup(t)

	w, env := do(r, http.MethodPost, "/api/v1/records", gin.H{
		"patient_id": patientID,
		"readings": []gin.H{
			{"test_type": "BloodPressure", "value": "200/130"},
			{"test_type": "HeartRate", "value": "72"},
		},
		"symptoms": []string{"cough"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Records []model.Reading `json:"records"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 2, data.Count)
	assert.True(t, data.Records[0].IsCritical)
	assert.False(t, data.Records[1].IsCritical)

	w, _ = do(r, http.MethodGet, "/api/v1/records/"+data.Records[0].ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(r, http.MethodGet, "/api/v1/patients/"+patientID.String()+"/records?is_critical=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)

	w, _ = do(r, http.MethodGet, "/api/v1/records/critical", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(r, http.MethodDelete, "/api/v1/records/"+data.Records[0].ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(r, http.MethodGet, "/api/v1/records/"+data.Records[0].ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitReadingsValidation(t *testing.T) {
	r, patientID := setup(t)

	w, env := do(r, http.MethodPost, "/api/v1/records", gin.H{
		"patient_id": patientID,
		"readings": []gin.H{
			{"test_type": "Glucose", "value": "5"},
			{"test_type": "HeartRate", "value": ""},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", env.Status)
	require.Len(t, env.Errors, 2)
	assert.Equal(t, "readings[0].test_type", env.Errors[0].Field)
	assert.Equal(t, "readings[1].value", env.Errors[1].Field)
}

func TestSubmitReadingsErrors(t *testing.T) {
	r, _ := setup(t)

	w, _ := do(r, http.MethodPost, "/api/v1/records", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(r, http.MethodPost, "/api/v1/records", gin.H{
		"patient_id": uuid.New(),
		"readings":   []gin.H{{"test_type": "HeartRate", "value": "72"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "patient not found", env.Message)

	w, _ = do(r, http.MethodGet, "/api/v1/records/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodGet, "/api/v1/records/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

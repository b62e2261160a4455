package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthtrack-api/internal/middleware"
	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository/memory"
	"github.com/jwalitptl/healthtrack-api/internal/service/patient"
	"github.com/jwalitptl/healthtrack-api/internal/service/status"
	"github.com/jwalitptl/healthtrack-api/pkg/auth"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
	"github.com/jwalitptl/healthtrack-api/pkg/validator"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

type fixture struct {
	router *gin.Engine
	store  *memory.Store
	tokens *auth.TokenManager
	token  string
	actor  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		store:  memory.NewStore(),
		tokens: auth.NewTokenManager("secret", "healthtrack"),
		actor:  uuid.New(),
	}
	var err error
	f.token, err = f.tokens.Generate(f.actor, time.Hour)
	require.NoError(t, err)

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	patients := patient.NewService(f.store.Patients(), validator.New(), time.Minute, logger.Nop())
	statusSvc := status.NewService(f.store.Patients(), f.store.Readings(), time.Second, logger.Nop(), m,
		status.WithListeners(patients))

	f.router = gin.New()
	f.router.Use(middleware.ErrorHandler())
	api := f.router.Group("/api/v1")
	api.Use(middleware.NewAuthMiddleware(f.tokens).Authenticate())
	NewHandler(patients, statusSvc).RegisterRoutes(api)
	return f
}

func (f *fixture) do(method, path string, body interface{}) (*httptest.ResponseRecorder, json.RawMessage) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env.Data
}

func createBody() gin.H {
	return gin.H{
		"name":            "Jane Doe",
		"dob":             "1980-05-17T00:00:00Z",
		"contact":         "5551234567",
		"medical_history": "asthma",
		"is_critical":     true,
	}
}

func TestCreatePatientIgnoresCriticalFlag(t *testing.T) {
	f := setup(t)

	w, data := f.do(http.MethodPost, "/api/v1/patients", createBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p model.Patient
	require.NoError(t, json.Unmarshal(data, &p))
	assert.False(t, p.IsCritical)
	require.NotNil(t, p.CreatedBy)
	assert.Equal(t, f.actor, *p.CreatedBy)

	w, _ = f.do(http.MethodGet, "/api/v1/patients/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreatePatientValidation(t *testing.T) {
	f := setup(t)
	body := createBody()
	body["contact"] = "12"

	w, _ := f.do(http.MethodPost, "/api/v1/patients", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"contact"`)
}

func TestRequiresToken(t *testing.T) {
	f := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/critical", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReconcileAndCriticalList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w, data := f.do(http.MethodPost, "/api/v1/patients", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var p model.Patient
	require.NoError(t, json.Unmarshal(data, &p))

	// Prime the cache with an empty list.
	w, _ = f.do(http.MethodGet, "/api/v1/patients/critical", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, f.store.Readings().CreateBatch(ctx, []*model.Reading{{
		ID:         uuid.New(),
		PatientID:  p.ID,
		TestType:   vitals.TestTypeOxygenLevel,
		Value:      "85",
		IsCritical: true,
		RecordedAt: time.Now(),
	}}))

	w, data = f.do(http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Patient model.Patient `json:"patient"`
		Changed bool          `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Changed)
	assert.True(t, result.Patient.IsCritical)

	w, data = f.do(http.MethodGet, "/api/v1/patients/critical", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 1, list.Count)

	w, _ = f.do(http.MethodGet, "/api/v1/patients/statistics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(http.MethodDelete, "/api/v1/patients/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/reconcile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePatientKeepsCriticalFlag(t *testing.T) {
	f := setup(t)

	w, data := f.do(http.MethodPost, "/api/v1/patients", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var p model.Patient
	require.NoError(t, json.Unmarshal(data, &p))

	w, data = f.do(http.MethodPut, "/api/v1/patients/"+p.ID.String(), gin.H{
		"name":        "Jane Q Doe",
		"is_critical": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Patient
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "Jane Q Doe", updated.Name)
	assert.False(t, updated.IsCritical)

	stored, err := f.store.Patients().Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCritical)

	w, _ = f.do(http.MethodPut, "/api/v1/patients/"+uuid.NewString(), gin.H{"name": "Nobody Here"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPatientsFilters(t *testing.T) {
	f := setup(t)

	for _, name := range []string{"Jane Doe", "John Roe"} {
		body := createBody()
		body["name"] = name
		w, _ := f.do(http.MethodPost, "/api/v1/patients", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, data := f.do(http.MethodGet, "/api/v1/patients?search=jane&is_critical=false", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Patients []model.Patient `json:"patients"`
		Total    int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Patients, 1)
	assert.Equal(t, "Jane Doe", list.Patients[0].Name)

	w, _ = f.do(http.MethodGet, "/api/v1/patients?is_critical=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/http/middleware"
	"github.com/ihirwe/go-triage-backend/internal/repo"
	"github.com/ihirwe/go-triage-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI wires real services over a temp SQLite database into a Gin
// router with the same route layout as production. Only the idempotency
// validator is mounted; the rest of the middleware stack is exercised in
// the router package.
func newTestAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := New(db,
		services.NewRegistryService(db),
		services.NewSessionService(db),
		services.NewAssessmentService(db),
		services.NewWorkflowService(db),
		time.Hour,
	)

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	r.POST("/patients", h.RegisterPatient)
	r.GET("/patients", h.ListPatientsByPhone)
	r.GET("/patients/lookup", h.LookupPatient)
	r.GET("/patients/:id", h.GetPatient)
	r.PATCH("/patients/:id", h.UpdatePatient)
	r.GET("/patients/:id/history", h.PatientHistory)
	r.GET("/patients/:id/sessions", h.ListPatientSessions)
	r.DELETE("/patients/:id", h.DeletePatient)

	r.POST("/workers", h.RegisterWorker)
	r.GET("/workers", h.ListWorkers)
	r.GET("/workers/:id", h.GetWorker)
	r.DELETE("/workers/:id", h.DeactivateWorker)

	r.POST("/sessions", h.OpenSession)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/messages", h.PostMessage)
	r.GET("/sessions/:id/messages", h.ListMessages)
	r.POST("/sessions/:id/symptoms", h.RecordSymptom)
	r.GET("/sessions/:id/symptoms", h.ListSymptoms)
	r.PATCH("/sessions/:id/notes", h.UpdateSessionNotes)
	r.POST("/sessions/:id/close", h.CloseSession)
	r.DELETE("/sessions/:id", h.DeleteSession)

	r.POST("/sessions/:id/prediction", h.RecordPrediction)
	r.GET("/sessions/:id/prediction", h.GetPrediction)
	r.POST("/predictions/:id/review", h.ReviewPrediction)
	r.POST("/sessions/:id/prescriptions", h.Prescribe)
	r.GET("/sessions/:id/prescriptions", h.ListPrescriptions)
	r.POST("/prescriptions/:id/dispense", h.DispensePrescription)

	r.GET("/reports/review-queue", h.ReviewQueue)
	r.GET("/reports/sessions", h.SessionOverview)
	r.GET("/reports/worker-activity", h.WorkerActivity)

	return r, db
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out (when non-nil).
func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, out any, headers ...map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, hs := range headers {
		for k, v := range hs {
			req.Header.Set(k, v)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

// performRaw serves a pre-built request and returns the recorder.
func performRaw(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// errCode extracts the stable error code from an error envelope.
func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("not an error envelope: %q", w.Body.String())
	}
	return resp.Code
}

// registerPatient creates a patient through the API and returns its id.
func registerPatient(t *testing.T, r *gin.Engine) uint {
	t.Helper()
	var p struct {
		ID uint `json:"id"`
	}
	w := doJSON(t, r, http.MethodPost, "/patients", gin.H{
		"full_name":    "Aline Uwase",
		"phone_number": "+250788000001",
	}, &p)
	if w.Code != http.StatusOK {
		t.Fatalf("register patient: %d %s", w.Code, w.Body.String())
	}
	return p.ID
}

// registerWorker onboards a doctor through the API and returns its id.
func registerWorker(t *testing.T, r *gin.Engine) uint {
	t.Helper()
	var wk struct {
		ID uint `json:"id"`
	}
	w := doJSON(t, r, http.MethodPost, "/workers", gin.H{
		"full_name": "Jean Mugisha",
		"role":      "doctor",
	}, &wk)
	if w.Code != http.StatusCreated {
		t.Fatalf("register worker: %d %s", w.Code, w.Body.String())
	}
	return wk.ID
}

// openSession opens a session for the patient and returns its id.
func openSession(t *testing.T, r *gin.Engine, patientID uint) uint {
	t.Helper()
	var s struct {
		ID uint `json:"id"`
	}
	w := doJSON(t, r, http.MethodPost, "/sessions", gin.H{"patient_id": patientID}, &s)
	if w.Code != http.StatusCreated {
		t.Fatalf("open session: %d %s", w.Code, w.Body.String())
	}
	return s.ID
}

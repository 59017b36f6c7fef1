package httpserver

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/automaton-forensics/internal/application/ai"
	appanalysis "github.com/bryanwahyu/automaton-forensics/internal/application/analysis"
	domai "github.com/bryanwahyu/automaton-forensics/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
	"github.com/bryanwahyu/automaton-forensics/internal/middleware"
)

const (
	maxUploadBytes = 32 << 20 // hard cap per request body
	maxBatchItems  = 100
)

// errBadRequest menandai error input klien; wrap() balas 400
var errBadRequest = errors.New("bad request")

type Router struct {
	analysisSvc *appanalysis.Service
	aiSvc       *appai.Service
}

func NewRouter(analysisSvc *appanalysis.Service, aiSvc *appai.Service, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{analysisSvc: analysisSvc, aiSvc: aiSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler(analysisSvc))

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)

		rt.Post("/documents/analyze", r.wrap(r.handleSubmit))
		rt.Post("/documents/analyze/batch", r.wrap(r.handleSubmitBatch))

		rt.Get("/jobs/{id}", r.wrap(r.handleJobStatus))
		rt.Post("/jobs/{id}/cancel", r.wrap(r.handleCancel))
		rt.Get("/jobs/{id}/result", r.wrap(r.handleResult))
		rt.Get("/batches/{id}", r.wrap(r.handleBatchStatus))

		rt.Get("/results/latest", r.wrap(r.handleLatest))
		rt.Get("/results", r.wrap(r.handleResults))
		rt.Get("/summary", r.wrap(r.handleSummary))

		rt.Get("/custody/{documentID}", r.wrap(r.handleCustodyList))
		rt.Get("/custody/{documentID}/verify", r.wrap(r.handleCustodyVerify))
		rt.Get("/custody/{documentID}/export", r.wrap(r.handleCustodyExport))

		rt.Post("/ai/examine", r.wrap(r.handleExamine))
		rt.Get("/ai/examinations", r.wrap(r.handleExamineList))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var maxErr *http.MaxBytesError
			switch {
			case errors.Is(err, errBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrUnsupportedFormat):
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			case errors.Is(err, domain.ErrCorruptDocument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, jobs.ErrNotReady):
				http.Error(w, "analysis still running", http.StatusConflict)
			case errors.Is(err, jobs.ErrAlreadyTerminal):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, sql.ErrNoRows), errors.Is(err, jobs.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.As(err, &maxErr):
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// documentPayload satu dokumen dari request body
type documentPayload struct {
	Name       string `json:"name"`
	Format     string `json:"format"`
	ContentB64 string `json:"content_b64"`
}

// decode checks the name + encoding saja; format yang aneh dibiarkan
// lewat supaya service yang memutuskan (single submit -> 415, batch
// item -> job FAILED)
func (p documentPayload) decode() (string, string, []byte, error) {
	if err := middleware.ValidateDocumentName(p.Name); err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	content, err := base64.StdEncoding.DecodeString(p.ContentB64)
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: content_b64 is not valid base64", errBadRequest)
	}
	return middleware.SanitizeString(p.Name), p.Format, content, nil
}

// readDocument terima multipart (file+format) atau JSON (content_b64)
func (r *Router) readDocument(req *http.Request) (name, format string, content []byte, err error) {
	ct, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		f, hdr, err := req.FormFile("file")
		if err != nil {
			return "", "", nil, fmt.Errorf("%w: file field is required", errBadRequest)
		}
		defer f.Close()
		content, err = io.ReadAll(f)
		if err != nil {
			return "", "", nil, err
		}
		name = hdr.Filename
		if v := req.FormValue("name"); v != "" {
			name = v
		}
		if err := middleware.ValidateDocumentName(name); err != nil {
			return "", "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return middleware.SanitizeString(name), req.FormValue("format"), content, nil
	}

	var p documentPayload
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return p.decode()
}

// POST /v1/{tenant}/documents/analyze
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	name, format, content, err := r.readDocument(req)
	if err != nil {
		return err
	}

	res, err := r.analysisSvc.Submit(req.Context(), appanalysis.SubmitCommand{
		TenantID:       tenant,
		Name:           name,
		DeclaredFormat: format,
		Content:        content,
		CorrelationID:  middleware.GetRequestID(req.Context()),
	})
	if err != nil {
		return err
	}

	middleware.IncrementAnalysesSubmitted(1)
	return writeJSON(w, http.StatusAccepted, res)
}

// POST /v1/{tenant}/documents/analyze/batch
func (r *Router) handleSubmitBatch(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	var body struct {
		Documents []documentPayload `json:"documents"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body.Documents) == 0 {
		return fmt.Errorf("%w: documents is empty", errBadRequest)
	}
	if len(body.Documents) > maxBatchItems {
		return fmt.Errorf("%w: batch too large (max %d documents)", errBadRequest, maxBatchItems)
	}

	// format yang tidak dikenal tetap masuk batch; orchestrator yang
	// menandai job-nya FAILED tanpa mengganggu saudaranya
	cmd := appanalysis.BatchCommand{TenantID: tenant}
	for _, p := range body.Documents {
		name, format, content, err := p.decode()
		if err != nil {
			return err
		}
		cmd.Items = append(cmd.Items, appanalysis.SubmitCommand{
			Name:           name,
			DeclaredFormat: format,
			Content:        content,
			CorrelationID:  middleware.GetRequestID(req.Context()),
		})
	}

	res, err := r.analysisSvc.SubmitBatch(req.Context(), cmd)
	if err != nil {
		return err
	}

	middleware.IncrementAnalysesSubmitted(len(res.JobIDs))
	return writeJSON(w, http.StatusAccepted, res)
}

// GET /v1/{tenant}/jobs/{id}
func (r *Router) handleJobStatus(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	st, err := r.analysisSvc.GetJobStatus(req.Context(), tenant, jobs.JobID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// POST /v1/{tenant}/jobs/{id}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if err := r.analysisSvc.Cancel(req.Context(), tenant, jobs.JobID(id)); err != nil {
		return err
	}

	middleware.IncrementAnalysesCancelled()
	return writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  id,
		"status":  "cancellation requested",
		"message": "job will stop at the next stage boundary",
	})
}

// GET /v1/{tenant}/jobs/{id}/result
func (r *Router) handleResult(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	res, err := r.analysisSvc.GetResult(req.Context(), tenant, jobs.JobID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/batches/{id}
func (r *Router) handleBatchStatus(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	st, err := r.analysisSvc.GetBatchStatus(req.Context(), tenant, jobs.BatchID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /v1/{tenant}/results/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysisSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/results?page=&page_size=
// Keyset mode: ?after_time=RFC3339&after_id=<job uuid>&page_size=
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	q := req.URL.Query()
	pageSize := middleware.ValidateLimit(atoiOr(q.Get("page_size"), 0))

	if afterTime := q.Get("after_time"); afterTime != "" {
		cursorTime, err := time.Parse(time.RFC3339Nano, afterTime)
		if err != nil {
			return fmt.Errorf("%w: after_time must be RFC3339", errBadRequest)
		}
		afterID := q.Get("after_id")
		list, err := r.analysisSvc.Cursor(req.Context(), tenant, cursorTime, afterID, pageSize)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, map[string]any{
			"data":      list,
			"page_size": pageSize,
		})
	}

	page := atoiOr(q.Get("page"), 1)
	list, total, err := r.analysisSvc.Paginate(req.Context(), tenant, page, pageSize)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"data":        list,
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.analysisSvc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// GET /v1/{tenant}/custody/{documentID}
func (r *Router) handleCustodyList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	docID := chi.URLParam(req, "documentID")
	if err := middleware.ValidateDocumentID(docID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	entries, err := r.analysisSvc.ExportCustody(req.Context(), tenant, documents.DocumentID(docID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"entries":     entries,
	})
}

// GET /v1/{tenant}/custody/{documentID}/verify
func (r *Router) handleCustodyVerify(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	docID := chi.URLParam(req, "documentID")
	if err := middleware.ValidateDocumentID(docID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	report, err := r.analysisSvc.VerifyCustody(req.Context(), tenant, documents.DocumentID(docID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

// GET /v1/{tenant}/custody/{documentID}/export
func (r *Router) handleCustodyExport(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	docID := chi.URLParam(req, "documentID")
	if err := middleware.ValidateDocumentID(docID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	entries, err := r.analysisSvc.ExportCustody(req.Context(), tenant, documents.DocumentID(docID))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=custody-%s.json", docID[:12]))
	return writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":   tenant,
		"document_id": docID,
		"exported_at": time.Now().UTC(),
		"entries":     entries,
	})
}

// POST /v1/{tenant}/ai/examine
// Body: {"job_id": "<id>"}
// The server fetches the job's analysis result and runs the examiner on it.
func (r *Router) handleExamine(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateJobID(body.JobID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	res, err := r.analysisSvc.GetResult(req.Context(), tenant, jobs.JobID(body.JobID))
	if err != nil {
		return err
	}

	findings, err := json.Marshal(map[string]any{
		"risk":       res.Risk,
		"confidence": res.Confidence,
		"format":     res.Format,
		"indicators": res.Indicators,
	})
	if err != nil {
		return err
	}

	exam, err := r.aiSvc.ExamineAndStore(req.Context(), tenant, body.JobID, string(res.DocumentID), string(findings))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, exam)
}

// GET /v1/{tenant}/ai/examinations?page=&page_size=
func (r *Router) handleExamineList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.aiSvc.ListExaminations(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

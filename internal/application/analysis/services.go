package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-forensics/internal/application"
	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/custody"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/joberrors"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// Error code untuk kolom error_code di job
const (
	CodeUnsupportedFormat = "UnsupportedFormat"
	CodeCorruptDocument   = "CorruptDocument"
	CodeTransientIO       = "TransientIOError"
	CodeFatalAnalysis     = "FatalAnalysisError"
	CodeCancelled         = "Cancelled"
)

// EventPublisher port opsional; nil berarti tidak publish apa-apa
type EventPublisher interface {
	AnalysisCompleted(ctx context.Context, res *domain.AnalysisResult) error
	BatchCompleted(ctx context.Context, st jobs.BatchStatus) error
}

// RetryPolicy backoff eksponensial dengan cap untuk error transient
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	d := p.Base << uint(attempt)
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	return d
}

// Options knob orchestrator, diisi main dari config
type Options struct {
	Workers         int
	QueueSize       int
	DetectorTimeout time.Duration
	Retry           RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.DetectorTimeout <= 0 {
		o.DetectorTimeout = 20 * time.Second
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = RetryPolicy{Attempts: 3, Base: 200 * time.Millisecond, Max: 5 * time.Second}
	}
	return o
}

// Service implements use-cases pipeline analisis dokumen.
// Satu instance dipakai concurrent oleh router dan worker pool.
type Service struct {
	Jobs      jobs.Repository
	Docs      documents.Repository
	Results   domain.Repository
	JobErrors joberrors.Repository
	Content   documents.ContentStore
	Registry  domain.Registry
	Ledger    *custody.Ledger
	Clock     application.Clock
	Policy    domain.ScorePolicy
	Publisher EventPublisher

	opts  Options
	queue chan queued

	mu        sync.Mutex
	cancels   map[jobs.JobID]context.CancelFunc
	cancelled map[jobs.JobID]bool
	published map[jobs.BatchID]bool
}

type queued struct {
	tenant string
	jobID  jobs.JobID
}

func NewService(opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		opts:      opts,
		queue:     make(chan queued, opts.QueueSize),
		cancels:   make(map[jobs.JobID]context.CancelFunc),
		cancelled: make(map[jobs.JobID]bool),
		published: make(map[jobs.BatchID]bool),
	}
}

// Start nyalakan worker pool; worker berhenti saat ctx selesai.
// Job yang masih QUEUED di repo saat shutdown tetap QUEUED.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		go s.worker(ctx)
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-s.queue:
			s.runJob(ctx, q.tenant, q.jobID)
		}
	}
}

//
// ==== USE CASES ====
//

// Command submit satu dokumen
type SubmitCommand struct {
	TenantID       string
	Name           string
	DeclaredFormat string
	Content        []byte
	CorrelationID  string
}

type SubmitResult struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	State      string `json:"state"`
}

// Submit enqueue satu dokumen. Format tanpa detector family langsung
// ditolak ErrUnsupportedFormat, job tidak dibuat.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	format, ok := documents.ParseFormat(cmd.DeclaredFormat)
	if !ok || !s.Registry.Supported(format) {
		return SubmitResult{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, cmd.DeclaredFormat)
	}
	if len(cmd.Content) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: empty content", domain.ErrCorruptDocument)
	}

	job, err := s.enqueueOne(ctx, cmd, format, "")
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		JobID:      string(job.ID),
		DocumentID: string(job.DocumentID),
		State:      string(job.State),
	}, nil
}

// Command submit batch
type BatchCommand struct {
	TenantID string
	Items    []SubmitCommand
}

type BatchResult struct {
	BatchID string   `json:"batch_id"`
	JobIDs  []string `json:"job_ids"`
}

// SubmitBatch fan-out N dokumen ke worker pool. Item yang formatnya tidak
// didukung atau kosong tetap dapat job, langsung FAILED, saudaranya jalan
// terus. Semua row job plus row batch dipersist dulu, baru ada yang didorong
// ke queue; worker tercepat pun selalu melihat keanggotaan batch lengkap.
func (s *Service) SubmitBatch(ctx context.Context, cmd BatchCommand) (BatchResult, error) {
	if len(cmd.Items) == 0 {
		return BatchResult{}, errors.New("empty batch")
	}

	batchID := jobs.BatchID(uuid.New().String())
	res := BatchResult{BatchID: string(batchID)}
	batch := &jobs.BatchJob{
		ID:          batchID,
		TenantID:    cmd.TenantID,
		SubmittedAt: s.Clock.Now(),
	}

	var runnable []*jobs.AnalysisJob
	for _, item := range cmd.Items {
		item.TenantID = cmd.TenantID

		var job *jobs.AnalysisJob
		var err error
		format, ok := documents.ParseFormat(item.DeclaredFormat)
		switch {
		case !ok || !s.Registry.Supported(format):
			job, err = s.failImmediate(ctx, item, batchID, documents.FormatUnknown,
				CodeUnsupportedFormat, fmt.Sprintf("no detector family for format %q", item.DeclaredFormat))
		case len(item.Content) == 0:
			job, err = s.failImmediate(ctx, item, batchID, format, CodeCorruptDocument, "empty content")
		default:
			job, err = s.prepareOne(ctx, item, format, batchID)
			if err == nil {
				runnable = append(runnable, job)
			}
		}
		if err != nil {
			return BatchResult{}, err
		}
		batch.JobIDs = append(batch.JobIDs, job.ID)
		res.JobIDs = append(res.JobIDs, string(job.ID))
	}

	if err := s.Jobs.SaveBatch(ctx, batch); err != nil {
		return BatchResult{}, err
	}
	for _, job := range runnable {
		if err := s.push(ctx, job); err != nil {
			return BatchResult{}, err
		}
	}
	// batch yang semua itemnya lahir FAILED tidak pernah lewat worker,
	// jadi event selesainya dicek di sini
	s.maybePublishBatchDone(ctx, cmd.TenantID, batchID)
	return res, nil
}

// enqueueOne simpan dokumen + job QUEUED lalu dorong ke pool
func (s *Service) enqueueOne(ctx context.Context, cmd SubmitCommand, format documents.Format, batchID jobs.BatchID) (*jobs.AnalysisJob, error) {
	job, err := s.prepareOne(ctx, cmd, format, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.push(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// prepareOne simpan dokumen + row job QUEUED tanpa menyentuh queue
func (s *Service) prepareOne(ctx context.Context, cmd SubmitCommand, format documents.Format, batchID jobs.BatchID) (*jobs.AnalysisJob, error) {
	now := s.Clock.Now()
	docID := documents.ComputeID(cmd.Content)

	ref, err := s.putWithRetry(ctx, cmd.TenantID, docID, cmd.Content)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	doc := &documents.Document{
		ID:             docID,
		TenantID:       cmd.TenantID,
		Name:           cmd.Name,
		DeclaredFormat: format,
		SniffedFormat:  documents.SniffFormat(cmd.Name, cmd.Content),
		SizeBytes:      int64(len(cmd.Content)),
		ContentRef:     ref,
		CorrelationID:  cmd.CorrelationID,
		IngestedAt:     now,
	}
	if err := s.Docs.Save(ctx, doc); err != nil {
		return nil, err
	}

	job := &jobs.AnalysisJob{
		ID:         jobs.JobID(uuid.New().String()),
		BatchID:    batchID,
		TenantID:   cmd.TenantID,
		DocumentID: docID,
		Format:     format,
		State:      jobs.StateQueued,
		Progress:   jobs.StageProgress(jobs.StateQueued),
		EnqueuedAt: now,
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	s.appendLedger(ctx, job, custody.ActorAPI, fmt.Sprintf("job %s enqueued (format=%s)", job.ID, format))
	return job, nil
}

func (s *Service) push(ctx context.Context, job *jobs.AnalysisJob) error {
	select {
	case s.queue <- queued{tenant: job.TenantID, jobID: job.ID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failImmediate bikin job yang lahir FAILED tanpa lewat pool
// supaya counts batch tetap jujur
func (s *Service) failImmediate(ctx context.Context, cmd SubmitCommand, batchID jobs.BatchID, format documents.Format, code, msg string) (*jobs.AnalysisJob, error) {
	now := s.Clock.Now()
	docID := documents.ComputeID(cmd.Content)
	finished := now
	job := &jobs.AnalysisJob{
		ID:           jobs.JobID(uuid.New().String()),
		BatchID:      batchID,
		TenantID:     cmd.TenantID,
		DocumentID:   docID,
		Format:       format,
		State:        jobs.StateFailed,
		Progress:     0,
		ErrorCode:    code,
		ErrorMessage: msg,
		EnqueuedAt:   now,
		FinishedAt:   &finished,
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	s.appendLedger(ctx, job, custody.ActorAPI, fmt.Sprintf("job %s rejected: %s", job.ID, code))
	return job, nil
}

//
// ==== JOB EXECUTION ====
//

type detectOutcome struct {
	name       string
	indicators []domain.Indicator
	err        error
	timedOut   bool
}

// runJob jalankan state machine satu job sampai terminal.
// Stage sekuensial; detector di dalam DETECTING paralel.
func (s *Service) runJob(baseCtx context.Context, tenant string, id jobs.JobID) {
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()
	s.registerCancel(id, cancel)
	defer s.unregisterCancel(id)

	job, err := s.getJobWithRetry(ctx, tenant, id)
	if err != nil {
		// jangan tinggalkan row nyangkut QUEUED; tulis terminal best-effort
		s.failJob(ctx, &jobs.AnalysisJob{ID: id, TenantID: tenant}, CodeTransientIO,
			fmt.Sprintf("load job after %d attempts: %v", s.opts.Retry.Attempts, err))
		return
	}
	if job.State != jobs.StateQueued {
		return
	}
	started := s.Clock.Now()
	job.StartedAt = &started

	if s.checkCancelled(ctx, job) {
		return
	}

	// ---- EXTRACTING_METADATA ----
	if !s.transition(ctx, job, jobs.StateExtractingMetadata) {
		return
	}
	doc, err := s.Docs.Get(ctx, tenant, job.DocumentID)
	if err != nil {
		s.failJob(ctx, job, CodeTransientIO, fmt.Sprintf("load document: %v", err))
		return
	}
	content, err := s.fetchWithRetry(ctx, job, doc.ContentRef)
	if err != nil {
		s.failJob(ctx, job, CodeTransientIO, fmt.Sprintf("fetch content after %d attempts: %v", s.opts.Retry.Attempts, err))
		return
	}

	var metaIndicators []domain.Indicator
	sniffed := documents.SniffFormat(doc.Name, content)
	if sniffed != documents.FormatUnknown && sniffed != job.Format {
		metaIndicators = append(metaIndicators, domain.Indicator{
			Kind:       domain.KindFormatMismatch,
			Confidence: 0.6,
			Evidence:   fmt.Sprintf("declared format %s but content sniffs as %s", job.Format, sniffed),
			Detector:   "metadata",
		})
	}

	if s.checkCancelled(ctx, job) {
		return
	}

	// ---- DETECTING ----
	if !s.transition(ctx, job, jobs.StateDetecting) {
		return
	}
	detectors, err := s.Registry.DetectorsFor(job.Format)
	if err != nil {
		s.failJob(ctx, job, CodeUnsupportedFormat, err.Error())
		return
	}

	outcomes, cancelledMid := s.runDetectors(ctx, job, detectors, content)
	if cancelledMid {
		s.finishCancelled(ctx, job)
		return
	}

	indicators := append([]domain.Indicator{}, metaIndicators...)
	failures := 0
	for _, oc := range outcomes {
		switch {
		case oc.err == nil:
			indicators = append(indicators, oc.indicators...)
			s.appendLedger(ctx, job, "detector:"+oc.name,
				fmt.Sprintf("detector %s ok: %d indicators", oc.name, len(oc.indicators)))
		case errors.Is(oc.err, domain.ErrCorruptDocument):
			s.appendLedger(ctx, job, "detector:"+oc.name,
				fmt.Sprintf("detector %s aborted: corrupt document", oc.name))
			s.failJob(ctx, job, CodeCorruptDocument, truncate(oc.err.Error(), 300))
			return
		default:
			failures++
			kind := domain.KindDetectorError
			evidence := fmt.Sprintf("detector %s failed: %s", oc.name, truncate(oc.err.Error(), 200))
			action := fmt.Sprintf("detector %s error: %s", oc.name, truncate(oc.err.Error(), 120))
			if oc.timedOut {
				kind = domain.KindDetectorTimeout
				evidence = fmt.Sprintf("detector %s exceeded its %s budget", oc.name, s.opts.DetectorTimeout)
				action = fmt.Sprintf("detector %s timeout", oc.name)
			}
			indicators = append(indicators, domain.Indicator{
				Kind: kind, Confidence: 0, Evidence: evidence, Error: true, Detector: oc.name,
			})
			s.appendLedger(ctx, job, "detector:"+oc.name, action)
			s.recordJobError(ctx, job, oc.name, "detect", string(kind), oc.err.Error())
		}
	}
	if len(outcomes) > 0 && failures == len(outcomes) {
		s.failJob(ctx, job, CodeFatalAnalysis, domain.ErrFatalAnalysis.Error())
		return
	}

	if s.checkCancelled(ctx, job) {
		return
	}

	// ---- SCORING ----
	if !s.transition(ctx, job, jobs.StateScoring) {
		return
	}
	confidence, risk := s.Policy.Score(indicators)
	result := &domain.AnalysisResult{
		JobID:       string(job.ID),
		TenantID:    tenant,
		DocumentID:  job.DocumentID,
		Format:      job.Format,
		Indicators:  indicators,
		Confidence:  confidence,
		Risk:        risk,
		CompletedAt: s.Clock.Now(),
	}
	if err := s.saveResultWithRetry(ctx, job, result); err != nil {
		s.failJob(ctx, job, CodeTransientIO, fmt.Sprintf("persist result after %d attempts: %v", s.opts.Retry.Attempts, err))
		return
	}

	// ---- COMPLETED ----
	finished := s.Clock.Now()
	job.State = jobs.StateCompleted
	job.Progress = jobs.StageProgress(jobs.StateCompleted)
	job.FinishedAt = &finished
	if err := s.Jobs.Finish(ctx, tenant, job); err != nil {
		log.Printf("orchestrator: finish job %s: %v", job.ID, err)
	}
	s.appendLedger(ctx, job, custody.ActorOrchestrator,
		fmt.Sprintf("analysis completed: risk=%s confidence=%.2f indicators=%d", risk, confidence, len(indicators)))

	if s.Publisher != nil {
		if err := s.Publisher.AnalysisCompleted(ctx, result); err != nil {
			log.Printf("orchestrator: publish completion %s: %v", job.ID, err)
		}
	}
	s.maybePublishBatchDone(ctx, tenant, job.BatchID)
}

// runDetectors fan-out paralel dengan timeout per detector.
// Cancel dicek sebelum tiap detector dilepas.
func (s *Service) runDetectors(ctx context.Context, job *jobs.AnalysisJob, detectors []domain.Detector, content []byte) ([]detectOutcome, bool) {
	outcomes := make([]detectOutcome, 0, len(detectors))
	slots := make([]detectOutcome, len(detectors))
	var wg sync.WaitGroup
	launched := 0

	for i, det := range detectors {
		if s.isCancelled(job.ID) {
			break
		}
		wg.Add(1)
		launched++
		go func(i int, det domain.Detector) {
			defer wg.Done()
			dctx, dcancel := context.WithTimeout(ctx, s.opts.DetectorTimeout)
			defer dcancel()

			inds, err := det.Analyze(dctx, content)
			oc := detectOutcome{name: det.Name(), indicators: inds, err: err}
			if err != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
				oc.timedOut = true
			}
			slots[i] = oc
		}(i, det)
	}
	wg.Wait()

	if launched < len(detectors) || s.isCancelled(job.ID) {
		return nil, true
	}
	outcomes = append(outcomes, slots...)
	return outcomes, false
}

//
// ==== TRANSITIONS / FAILURES ====
//

// transition maju satu stage + progress checkpoint + ledger entry
func (s *Service) transition(ctx context.Context, job *jobs.AnalysisJob, to jobs.State) bool {
	if !jobs.CanTransition(job.State, to) {
		log.Printf("orchestrator: illegal transition %s -> %s for job %s", job.State, to, job.ID)
		s.failJob(ctx, job, CodeFatalAnalysis, fmt.Sprintf("illegal transition %s -> %s", job.State, to))
		return false
	}
	job.State = to
	if p := jobs.StageProgress(to); p > job.Progress {
		job.Progress = p
	}
	if err := s.Jobs.UpdateProgress(ctx, job.TenantID, job.ID, job.State, job.Progress); err != nil {
		log.Printf("orchestrator: update progress %s: %v", job.ID, err)
	}
	s.appendLedger(ctx, job, custody.ActorOrchestrator, "state "+string(to))
	return true
}

func (s *Service) failJob(ctx context.Context, job *jobs.AnalysisJob, code, msg string) {
	finished := s.Clock.Now()
	job.State = jobs.StateFailed
	job.ErrorCode = code
	job.ErrorMessage = truncate(msg, 500)
	job.FinishedAt = &finished
	if err := s.Jobs.Finish(ctx, job.TenantID, job); err != nil {
		log.Printf("orchestrator: mark failed %s: %v", job.ID, err)
	}
	s.appendLedger(ctx, job, custody.ActorOrchestrator, fmt.Sprintf("job failed: %s", code))
	s.maybePublishBatchDone(ctx, job.TenantID, job.BatchID)
}

func (s *Service) finishCancelled(ctx context.Context, job *jobs.AnalysisJob) {
	finished := s.Clock.Now()
	job.State = jobs.StateCancelled
	job.ErrorCode = CodeCancelled
	job.FinishedAt = &finished
	if err := s.Jobs.Finish(ctx, job.TenantID, job); err != nil {
		log.Printf("orchestrator: mark cancelled %s: %v", job.ID, err)
	}
	s.appendLedger(ctx, job, custody.ActorOrchestrator, "job cancelled")
	s.maybePublishBatchDone(ctx, job.TenantID, job.BatchID)
}

// checkCancelled dipanggil di stage boundary
func (s *Service) checkCancelled(ctx context.Context, job *jobs.AnalysisJob) bool {
	if s.isCancelled(job.ID) {
		s.finishCancelled(ctx, job)
		return true
	}
	return false
}

// maybePublishBatchDone kirim event batch sekali, saat semua job anggota
// sudah terminal. Counts dicek lawan JobIDs di row batch supaya sebagian
// row saja tidak kelihatan seperti batch komplit.
func (s *Service) maybePublishBatchDone(ctx context.Context, tenant string, batchID jobs.BatchID) {
	if batchID == "" || s.Publisher == nil {
		return
	}
	batch, err := s.Jobs.GetBatch(ctx, tenant, batchID)
	if err != nil {
		return
	}
	list, err := s.Jobs.ListByBatch(ctx, tenant, batchID)
	if err != nil {
		return
	}
	if len(list) != len(batch.JobIDs) {
		return
	}
	st := jobs.ComputeBatchStatus(batchID, list)
	if st.Queued+st.Running > 0 {
		return
	}
	if !s.markBatchPublished(batchID) {
		return
	}
	if err := s.Publisher.BatchCompleted(ctx, st); err != nil {
		log.Printf("orchestrator: publish batch %s: %v", batchID, err)
	}
}

// markBatchPublished test-and-set; false berarti event batch ini sudah keluar
func (s *Service) markBatchPublished(id jobs.BatchID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published[id] {
		return false
	}
	s.published[id] = true
	return true
}

//
// ==== CANCELLATION ====
//

func (s *Service) registerCancel(id jobs.JobID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Service) unregisterCancel(id jobs.JobID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
	delete(s.cancelled, id)
}

func (s *Service) isCancelled(id jobs.JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[id]
}

// Cancel minta pembatalan kooperatif. Job QUEUED ditandai dan akan
// langsung CANCELLED saat diambil worker; job jalan dicek di boundary.
func (s *Service) Cancel(ctx context.Context, tenant string, id jobs.JobID) error {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s in state %s: %w", id, job.State, jobs.ErrAlreadyTerminal)
	}

	s.mu.Lock()
	s.cancelled[id] = true
	cancel := s.cancels[id]
	s.mu.Unlock()

	if cancel != nil {
		// lepas detector in-flight di timeout-nya, jangan tunggu
		cancel()
	}
	s.appendLedger(ctx, job, custody.ActorAPI, "cancellation requested")
	return nil
}

// Stats reports queue depth + jumlah job yang sedang jalan
func (s *Service) Stats() (queued, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.cancels)
}

//
// ==== QUERIES ====
//

type JobStatus struct {
	JobID    string             `json:"job_id"`
	State    string             `json:"state"`
	Progress int                `json:"progress"`
	Error    string             `json:"error,omitempty"`
	Errors   []jobs.ErrorRecord `json:"errors,omitempty"`
}

// GetJobStatus status + progress + error records satu job
func (s *Service) GetJobStatus(ctx context.Context, tenant string, id jobs.JobID) (*JobStatus, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	st := &JobStatus{
		JobID:    string(job.ID),
		State:    string(job.State),
		Progress: job.Progress,
		Errors:   job.Errors,
	}
	if job.ErrorCode != "" {
		st.Error = job.ErrorCode + ": " + job.ErrorMessage
	}
	if recs, err := s.JobErrors.ListByJob(ctx, tenant, string(id), 20); err == nil {
		for _, r := range recs {
			st.Errors = append(st.Errors, jobs.ErrorRecord{Code: r.Code, Message: r.Message, OccurredAt: r.CreatedAt})
		}
	}
	return st, nil
}

// GetResult ambil AnalysisResult job terminal.
// Non-terminal -> ErrNotReady; tidak ada result -> error repo (NotFound).
func (s *Service) GetResult(ctx context.Context, tenant string, id jobs.JobID) (*domain.AnalysisResult, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !job.State.Terminal() {
		return nil, jobs.ErrNotReady
	}
	return s.Results.GetByJob(ctx, tenant, string(id))
}

// GetBatchStatus counts dihitung ulang dari state job, bukan kolom tersimpan
func (s *Service) GetBatchStatus(ctx context.Context, tenant string, id jobs.BatchID) (jobs.BatchStatus, error) {
	if _, err := s.Jobs.GetBatch(ctx, tenant, id); err != nil {
		return jobs.BatchStatus{}, err
	}
	list, err := s.Jobs.ListByBatch(ctx, tenant, id)
	if err != nil {
		return jobs.BatchStatus{}, err
	}
	return jobs.ComputeBatchStatus(id, list), nil
}

// VerifyCustody walk ulang chain dokumen
func (s *Service) VerifyCustody(ctx context.Context, tenant string, doc documents.DocumentID) (*custody.VerifyReport, error) {
	return s.Ledger.Verify(ctx, tenant, doc)
}

// ExportCustody chain terurut untuk report layer
func (s *Service) ExportCustody(ctx context.Context, tenant string, doc documents.DocumentID) ([]*custody.Entry, error) {
	return s.Ledger.Export(ctx, tenant, doc)
}

// Latest ambil N result terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AnalysisResult, error) {
	return s.Results.Latest(ctx, tenant, limit)
}

// Paginate offset-based
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.AnalysisResult, int64, error) {
	return s.Results.Paginate(ctx, tenant, page, pageSize)
}

// Cursor keyset pagination by (completed_at, job_id)
func (s *Service) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorJobID string, pageSize int) ([]*domain.AnalysisResult, error) {
	return s.Results.Cursor(ctx, tenant, cursorTime, cursorJobID, pageSize)
}

// Summary rekap risk level N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (map[string]any, error) {
	counts, err := s.Results.Summary(ctx, tenant, sinceDays)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_analyses": counts.Total,
		"critical":       counts.Critical,
		"high":           counts.High,
		"medium":         counts.Medium,
		"low":            counts.Low,
	}, nil
}

//
// ==== HELPERS ====
//

func (s *Service) getJobWithRetry(ctx context.Context, tenant string, id jobs.JobID) (*jobs.AnalysisJob, error) {
	stub := &jobs.AnalysisJob{ID: id, TenantID: tenant}
	var lastErr error
	for attempt := 0; attempt < s.opts.Retry.Attempts; attempt++ {
		job, err := s.Jobs.Get(ctx, tenant, id)
		if err == nil {
			return job, nil
		}
		lastErr = err
		s.recordJobError(ctx, stub, "", "load", CodeTransientIO, err.Error())
		if attempt == s.opts.Retry.Attempts-1 {
			break
		}
		select {
		case <-time.After(s.opts.Retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *Service) fetchWithRetry(ctx context.Context, job *jobs.AnalysisJob, ref string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < s.opts.Retry.Attempts; attempt++ {
		content, err := s.Content.Fetch(ctx, ref)
		if err == nil {
			return content, nil
		}
		lastErr = err
		s.recordJobError(ctx, job, "", "fetch", CodeTransientIO, err.Error())
		if attempt == s.opts.Retry.Attempts-1 {
			break
		}
		select {
		case <-time.After(s.opts.Retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *Service) putWithRetry(ctx context.Context, tenant string, doc documents.DocumentID, content []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", tenant, doc)
	var lastErr error
	for attempt := 0; attempt < s.opts.Retry.Attempts; attempt++ {
		ref, err := s.Content.Put(ctx, key, content, "application/octet-stream")
		if err == nil {
			return ref, nil
		}
		lastErr = err
		if attempt == s.opts.Retry.Attempts-1 {
			break
		}
		select {
		case <-time.After(s.opts.Retry.Delay(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (s *Service) saveResultWithRetry(ctx context.Context, job *jobs.AnalysisJob, res *domain.AnalysisResult) error {
	var lastErr error
	for attempt := 0; attempt < s.opts.Retry.Attempts; attempt++ {
		err := s.Results.Save(ctx, res)
		if err == nil {
			return nil
		}
		lastErr = err
		s.recordJobError(ctx, job, "", "score", CodeTransientIO, err.Error())
		if attempt == s.opts.Retry.Attempts-1 {
			break
		}
		select {
		case <-time.After(s.opts.Retry.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// appendLedger tulis entry custody; gagal tulis dicatat, analisis lanjut
func (s *Service) appendLedger(ctx context.Context, job *jobs.AnalysisJob, actor, action string) {
	if job.DocumentID == "" {
		// entry custody selalu milik chain satu dokumen
		return
	}
	if _, err := s.Ledger.Append(ctx, job.TenantID, job.DocumentID, actor, action); err != nil {
		log.Printf("orchestrator: ledger append job=%s doc=%s: %v", job.ID, job.DocumentID, err)
		s.recordJobError(ctx, job, "", "ledger", CodeTransientIO, err.Error())
	}
}

func (s *Service) recordJobError(ctx context.Context, job *jobs.AnalysisJob, detector, phase, code, msg string) {
	rec := &joberrors.JobError{
		TenantID:  job.TenantID,
		JobID:     string(job.ID),
		Detector:  detector,
		Phase:     phase,
		Code:      code,
		Message:   truncate(msg, 500),
		CreatedAt: s.Clock.Now(),
	}
	if err := s.JobErrors.Save(ctx, rec); err != nil {
		log.Printf("orchestrator: record job error %s: %v", job.ID, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

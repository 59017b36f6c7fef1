package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/bryanwahyu/automaton-forensics/internal/application"
	appai "github.com/bryanwahyu/automaton-forensics/internal/application/ai"
	appanalysis "github.com/bryanwahyu/automaton-forensics/internal/application/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/config"
	domai "github.com/bryanwahyu/automaton-forensics/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/analyst"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/custody"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/joberrors"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
	openaiClient "github.com/bryanwahyu/automaton-forensics/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/ai/prompt"
	memorydb "github.com/bryanwahyu/automaton-forensics/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/automaton-forensics/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/automaton-forensics/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/events"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/ratelimit"
	minioStore "github.com/bryanwahyu/automaton-forensics/internal/infra/storage"
	"github.com/bryanwahyu/automaton-forensics/internal/middleware"
)

func main() {
	// .env opsional, buat dev lokal
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// ==== PERSISTENCE ====
	var (
		db           *sql.DB
		jobRepo      jobs.Repository
		docRepo      documents.Repository
		resultRepo   domain.Repository
		jobErrRepo   joberrors.Repository
		analystRepo  analyst.Repository
		custodyStore custody.Store
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		jobRepo = mysqlp.NewJobRepository(db)
		docRepo = mysqlp.NewDocumentRepository(db)
		resultRepo = mysqlp.NewResultRepository(db)
		jobErrRepo = mysqlp.NewJobErrorRepository(db)
		analystRepo = mysqlp.NewAnalystRepository(db)
		custodyStore = mysqlp.NewCustodyStore(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		jobRepo = postgresp.NewJobRepository(db)
		docRepo = postgresp.NewDocumentRepository(db)
		resultRepo = postgresp.NewResultRepository(db)
		jobErrRepo = postgresp.NewJobErrorRepository(db)
		analystRepo = postgresp.NewAnalystRepository(db)
		custodyStore = postgresp.NewCustodyStore(db)
	case "memory":
		jobRepo = memorydb.NewJobRepository()
		docRepo = memorydb.NewDocumentRepository()
		resultRepo = memorydb.NewResultRepository()
		jobErrRepo = memorydb.NewJobErrorRepository()
		analystRepo = memorydb.NewAnalystRepository()
		custodyStore = memorydb.NewCustodyStore()
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}
	if db != nil {
		defer db.Close()
	}

	// ==== CONTENT STORE ====
	var content documents.ContentStore
	switch cfg.Storage.Driver {
	case "minio":
		content, err = minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
	case "fs":
		content = minioStore.NewFileStore(cfg.Storage.Root)
	default:
		log.Fatalf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// ==== EVENTS ====
	var publisher appanalysis.EventPublisher
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AnalysisTopic, cfg.Kafka.BatchTopic)
		defer kp.Close()
		publisher = kp
	}

	// ==== ORCHESTRATOR ====
	svc := appanalysis.NewService(appanalysis.Options{
		Workers:         cfg.Analysis.Workers,
		QueueSize:       cfg.Analysis.QueueSize,
		DetectorTimeout: time.Duration(cfg.Analysis.DetectorTimeoutSeconds) * time.Second,
		Retry: appanalysis.RetryPolicy{
			Attempts: cfg.Analysis.Retry.Attempts,
			Base:     time.Duration(cfg.Analysis.Retry.BaseMS) * time.Millisecond,
			Max:      time.Duration(cfg.Analysis.Retry.MaxMS) * time.Millisecond,
		},
	})
	svc.Jobs = jobRepo
	svc.Docs = docRepo
	svc.Results = resultRepo
	svc.JobErrors = jobErrRepo
	svc.Content = content
	svc.Registry = detect.NewRegistry(cfg.Analysis.DisabledDetectors)
	svc.Ledger = custody.NewLedger(custodyStore)
	svc.Clock = application.SystemClock{}
	svc.Policy = scorePolicy(cfg)
	svc.Publisher = publisher
	svc.Start(ctx)

	// ==== AI EXAMINER ====
	var examiner domai.Client
	if cfg.OpenAI.APIKey != "" {
		examiner = openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		// tanpa API key tetap jalan, pakai komposisi lokal
		examiner = prompt.OfflineExaminer{}
	}
	aiSvc := appai.NewService(examiner, analystRepo, application.SystemClock{})

	// ==== HEALTH ====
	checkers := map[string]middleware.HealthChecker{}
	if db != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}
	if pinger, ok := content.(interface{ Ping(context.Context) error }); ok {
		checkers["storage"] = middleware.CheckFunc(pinger.Ping)
	}

	// ==== RATE LIMIT ====
	var limiter *ratelimit.RedisLimiter
	if cfg.Redis.Enabled {
		limiter, err = ratelimit.NewRedisLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		checkers["redis"] = middleware.CheckFunc(limiter.Ping)
	}

	// ==== ROUTER ====
	mux := chi.NewRouter()
	if len(cfg.Server.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	}
	if limiter != nil {
		window := time.Duration(cfg.Redis.WindowSeconds) * time.Second
		mux.Use(middleware.DistributedRateLimitMiddleware(limiter, cfg.Redis.Limit, window))
	} else {
		mux.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate))
	}
	mux.Mount("/", httpserver.NewRouter(svc, aiSvc, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s (db=%s storage=%s)", addr, cfg.Database.Driver, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	// worker berhenti dulu, job in-flight selesai di stage boundary
	stopWorkers()

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// scorePolicy terjemahkan angka config ke policy domain;
// section kosong jatuh ke default
func scorePolicy(cfg *config.Config) domain.ScorePolicy {
	p := domain.DefaultScorePolicy()
	w := cfg.Analysis.Weights
	if w.Content+w.Structure+w.Metadata+w.Visual > 0 {
		p.Weights = map[domain.Category]float64{
			domain.CategoryContent:   w.Content,
			domain.CategoryStructure: w.Structure,
			domain.CategoryMetadata:  w.Metadata,
			domain.CategoryVisual:    w.Visual,
		}
	}
	t := cfg.Analysis.Thresholds
	if t.Low > 0 && t.Medium > t.Low && t.High > t.Medium {
		p.LowBelow = t.Low
		p.MediumBelow = t.Medium
		p.HighBelow = t.High
	}
	return p
}

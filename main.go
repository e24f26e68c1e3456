package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"skytrack-cloud/internal/audit"
	"skytrack-cloud/internal/observability/metrics"
	"skytrack-cloud/internal/reports"
	"skytrack-cloud/internal/storage"
	"skytrack-cloud/internal/storage/objectstore"
	"skytrack-cloud/internal/supervisor"
	"skytrack-cloud/internal/telemetry/application"
	"skytrack-cloud/internal/telemetry/interfaces/httpapi"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	pipeline, err := application.LoadPipelineConfig()
	if err != nil {
		logger.Fatalf("pipeline config error: %v", err)
	}

	gate, err := supervisor.NewGate(pipeline.GateLimit, pipeline.GateMaxWait)
	if err != nil {
		logger.Fatalf("gate error: %v", err)
	}
	metrics.Init(gate)

	store, err := objectstore.NewClient(context.Background(), objectstore.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PathStyle:     cfg.S3PathStyle,
		PublicBaseURL: cfg.S3PublicBaseURL,
		MaxAttempts:   pipeline.RetryMaxAttempts,
		BaseDelay:     pipeline.RetryBaseDelay,
		MaxDelay:      pipeline.RetryMaxDelay,
	}, logger)
	if err != nil {
		logger.Fatalf("object store error: %v", err)
	}

	var auditRepo *audit.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		auditRepo = audit.NewRepository(db)
	}

	keys := storage.NewKeyGenerator(pipeline.KeyPrefix)

	var recorder audit.Recorder
	if auditRepo != nil {
		recorder = auditRepo
	}
	service, err := application.NewService(store, keys, gate, recorder, pipeline.MaxPayloadBytes, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	// Body limit covers the payload plus base64 and field overhead.
	maxBody := pipeline.MaxPayloadBytes + pipeline.MaxPayloadBytes/2 + 64<<10
	ingestHandler, err := httpapi.NewIngestHandler(service, maxBody, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/telemetry", ingestHandler)
	mux.Handle("/api/v1/stats", httpapi.NewStatsHandler(gate))
	if auditRepo != nil {
		mux.Handle("/api/v1/exports/uploads.xlsx", reports.NewUploadSummaryHandler(auditRepo))
		mux.Handle("/api/v1/exports/uploads.pdf", reports.NewUploadSummaryPDFHandler(auditRepo))
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	HTTPAddr        string
	DatabaseURL     string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PathStyle     bool
	S3PublicBaseURL string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:     getenvDefault("DATABASE_URL", ""),
		S3Endpoint:      getenvDefault("S3_ENDPOINT", ""),
		S3Region:        getenvDefault("S3_REGION", "us-east-1"),
		S3Bucket:        getenvDefault("S3_BUCKET", ""),
		S3AccessKey:     getenvDefault("S3_ACCESS_KEY", ""),
		S3SecretKey:     getenvDefault("S3_SECRET_KEY", ""),
		S3PathStyle:     getenvDefault("S3_PATH_STYLE", "true") == "true",
		S3PublicBaseURL: getenvDefault("S3_PUBLIC_BASE_URL", ""),
	}
	if cfg.S3Endpoint == "" {
		log.Fatal("S3_ENDPOINT is required")
	}
	if cfg.S3Bucket == "" {
		log.Fatal("S3_BUCKET is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		log.Fatal("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

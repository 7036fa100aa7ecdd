package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/config"
	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/core/ports"
	"github.com/kirillkom/annual-report-rag/internal/core/usecase"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/lexical/bm25"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/rerank/overlap"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/submission"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/vector/local"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/annual-report-rag/internal/observability/metrics"
)

const ServiceName = "finrag"

// App holds every adapter built from configuration. Inference components are
// assembled on demand by LoadInference because they need persisted artifacts.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Chunks      ports.ChunkStore
	VectorIndex ports.VectorIndex
	Embedder    ports.Embedder
	Generator   ports.StructuredGenerator
	Encoder     ports.CrossEncoder
	ModelPuller ports.ModelPuller
	Publisher   ports.AnswerPublisher

	IngestUC *usecase.IngestCorpusUseCase
	IndexUC  *usecase.VectorIndexBuilder

	Submissions *submission.Writer
	Uploader    *submission.Uploader
	outputKey   string

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(ServiceName),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerOpenTimeout:  time.Duration(cfg.BreakerOpenTimeoutSec) * time.Second,
	}, logger)

	chunks, err := app.openChunkStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Chunks = chunks

	index, err := app.openVectorIndex(ctx, executor)
	if err != nil {
		return nil, err
	}
	app.VectorIndex = index

	ollamaClient := ollama.New(ollama.Options{
		BaseURL:           cfg.OllamaURL,
		GenModel:          cfg.OllamaGenModel,
		EmbedModel:        cfg.OllamaEmbedModel,
		NumCtx:            cfg.OllamaNumCtx,
		Timeout:           time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.OllamaRequestsPerSecond,
	}, executor)
	app.Generator = ollama.NewStructuredGenerator(ollamaClient)
	app.Embedder = ollama.NewEmbedder(ollamaClient)
	app.ModelPuller = ollamaClient

	if cfg.RerankerURL != "" {
		app.Encoder = tei.New(cfg.RerankerURL, cfg.RerankerModel, time.Duration(cfg.RerankerTimeoutSeconds)*time.Second, executor)
	} else {
		logger.Warn("reranker_degraded",
			"encoder", "token_overlap",
			"reason", "RERANKER_URL is empty, reranking uses token overlap instead of a cross-encoder",
		)
		app.Encoder = overlap.New()
	}

	if cfg.NATSURL != "" {
		publisher, err := nats.NewPublisher(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init answer publisher: %w", err)
		}
		app.Publisher = publisher
		app.closers = append(app.closers, publisher.Close)
	}

	outputDir, outputKey := resolveOutput(cfg)
	storage, err := localfs.New(outputDir)
	if err != nil {
		return nil, fmt.Errorf("init output storage: %w", err)
	}
	app.Submissions = submission.NewWriter(storage)
	app.outputKey = outputKey
	if cfg.SubmissionURL != "" {
		app.Uploader = submission.NewUploader(cfg.SubmissionURL, 0, executor)
	}

	app.IngestUC = usecase.NewIngestCorpusUseCase(
		app.Chunks,
		pdf.NewExtractor(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		app.Generator,
		logger,
	)
	app.IndexUC = usecase.NewVectorIndexBuilder(
		app.Chunks,
		app.Embedder,
		app.VectorIndex,
		usecase.IndexBuildConfig{
			BatchSize:       cfg.IndexBatchSize,
			CheckpointEvery: cfg.IndexCheckpointEvery,
			ItemRetries:     cfg.IndexItemRetries,
		},
		app.Metrics,
		logger,
	)

	ok = true
	return app, nil
}

func (a *App) openChunkStore(ctx context.Context) (ports.ChunkStore, error) {
	switch a.Config.ChunkStore {
	case "postgres":
		db, err := postgres.OpenDB(a.Config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeDB(db)
		repo := postgres.NewChunkRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		db, err := sqlite.Open(a.Config.ChunkDBPath)
		if err != nil {
			return nil, fmt.Errorf("open chunk db: %w", err)
		}
		a.closeDB(db)
		return sqlite.NewChunkStore(ctx, db)
	}
}

func (a *App) openVectorIndex(ctx context.Context, executor *resilience.Executor) (ports.VectorIndex, error) {
	switch a.Config.VectorBackend {
	case "qdrant":
		return qdrant.New(a.Config.QdrantURL, a.Config.QdrantCollection, executor), nil
	default:
		db, err := sqlite.Open(a.Config.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
		a.closeDB(db)
		return local.NewIndex(ctx, db)
	}
}

func (a *App) closeDB(db *sql.DB) {
	a.closers = append(a.closers, func() { _ = db.Close() })
}

// Setup prepares data directories and pulls the configured models.
func (a *App) Setup(ctx context.Context) error {
	outputDir, _ := resolveOutput(a.Config)
	dirs := []string{
		a.Config.DataDir,
		a.Config.PDFDir,
		filepath.Dir(a.Config.ChunkDBPath),
		filepath.Dir(a.Config.IndexPath),
		outputDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	a.Logger.Info("directories_ready", "data_dir", a.Config.DataDir, "pdf_dir", a.Config.PDFDir)

	if err := a.ModelPuller.PullModel(ctx); err != nil {
		return fmt.Errorf("pull models: %w", err)
	}
	a.Logger.Info("models_ready", "gen_model", a.Config.OllamaGenModel, "embed_model", a.Config.OllamaEmbedModel)
	return nil
}

// Inference is the question-answering stack built over loaded artifacts.
type Inference struct {
	Catalog  *usecase.Catalog
	Pipeline *usecase.AnswerPipeline
	Batch    *usecase.BatchRunner
}

// LoadInference verifies that ingestion and indexing have produced their
// artifacts and assembles the pipeline. Missing artifacts are reported as
// domain.ErrArtifactMissing before any question is processed.
func (a *App) LoadInference(ctx context.Context) (*Inference, error) {
	chunks, err := a.Chunks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrArtifactMissing, "load artifacts", errors.New("chunk store is empty, run ingest first"))
	}

	exists, err := a.VectorIndex.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check vector index: %w", err)
	}
	if !exists {
		return nil, domain.WrapError(domain.ErrArtifactMissing, "load artifacts", errors.New("vector index not found, run build-index first"))
	}
	if err := a.VectorIndex.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	cfg := a.Config
	catalog := usecase.NewCatalog(chunks, cfg.RAGMatchThreshold)
	retriever := usecase.NewHybridRetriever(
		bm25.New(chunks, bm25.DefaultParams()),
		a.VectorIndex,
		a.Embedder,
		usecase.RetrievalConfig{
			LexicalK:     cfg.RAGLexicalK,
			VectorFetchK: cfg.RAGVectorFetchK,
			VectorK:      cfg.RAGVectorK,
			MMRLambda:    cfg.RAGMMRLambda,
			Weights: usecase.FusionWeights{
				Lexical:  cfg.RAGFusionLexicalW,
				Semantic: cfg.RAGFusionSemanticW,
				RankC:    cfg.RAGFusionRRFK,
			},
		},
		a.Logger,
	)
	pipeline := usecase.NewAnswerPipeline(
		usecase.NewQueryReformulator(a.Generator),
		usecase.NewQueryAnalyzer(a.Generator),
		catalog,
		retriever,
		usecase.NewReranker(a.Encoder),
		usecase.NewAnswerExtractor(a.Generator, a.Logger),
		usecase.PipelineConfig{RerankPool: cfg.RAGRerankPool, RerankTopN: cfg.RAGRerankTopN},
		a.Metrics,
		a.Logger,
	)

	a.Logger.Info("artifacts_loaded", "chunks", len(chunks), "companies", len(catalog.Names()))
	return &Inference{
		Catalog:  catalog,
		Pipeline: pipeline,
		Batch:    usecase.NewBatchRunner(pipeline, a.Publisher, a.Metrics, a.Logger),
	}, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// resolveOutput splits OUTPUT_FILE into a storage directory and key. Relative
// files live under OUTPUT_DIR.
func resolveOutput(cfg config.Config) (string, string) {
	if filepath.IsAbs(cfg.OutputFile) {
		return filepath.Dir(cfg.OutputFile), filepath.Base(cfg.OutputFile)
	}
	return cfg.OutputDir, cfg.OutputFile
}

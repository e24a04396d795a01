package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/aura/internal/api/handlers"
	"github.com/cloo-solutions/aura/internal/config"
	"github.com/cloo-solutions/aura/internal/database"
	"github.com/cloo-solutions/aura/internal/email"
	"github.com/cloo-solutions/aura/internal/jobs"
	"github.com/cloo-solutions/aura/internal/repository"
	"github.com/cloo-solutions/aura/internal/repository/memory"
	"github.com/cloo-solutions/aura/internal/server"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/cloo-solutions/aura/internal/storage"
	"github.com/redis/go-redis/v9"
)

const notificationSendTimeout = 30 * time.Second

// ingestQueue is what both the upload path and the ingest worker need.
type ingestQueue interface {
	service.IngestJobRepository
	jobs.IngestJobRepository
}

type stores struct {
	documents     service.DocumentRepository
	chunks        service.ChunkRepository
	ingestJobs    ingestQueue
	quizzes       service.QuizRepository
	mastery       service.MasteryRepository
	index         service.VectorIndex
	conversations service.ConversationStore
	tx            service.TxRunner
}

// BuildOptions tunes startup of the service graph.
type BuildOptions struct {
	NoMigrate        bool
	MigrationsSource string
}

// App is the wired service graph shared by serve and ingest.
type App struct {
	cfg           *config.Config
	documents     *service.DocumentService
	tutor         *service.TutorService
	conversations *service.ConversationService
	mastery       *service.MasteryService
	quizzes       *service.QuizService
	ingestJobs    ingestQueue
	notifications *jobs.NotificationQueue
	health        map[string]handlers.HealthCheck
	persistent    bool
	closers       []func()
}

// BuildApp connects every configured backend and falls back to in-process
// stores for what is not configured.
func BuildApp(ctx context.Context, cfg *config.Config, opts BuildOptions) (*App, error) {
	app := &App{cfg: cfg, health: map[string]handlers.HealthCheck{}}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	st, err := app.openStores(ctx, opts)
	if err != nil {
		return nil, err
	}

	var objects service.ObjectStorage
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objects = s3Client
	} else {
		log.Println("S3 not configured, original uploads will not be archived")
	}

	embedder, err := newEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}

	retrievalCfg := service.DefaultRetrievalConfig()
	retrievalCfg.Chunk = service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	retrievalCfg.TopK = cfg.TopK
	retrievalCfg.MinScore = cfg.MinScore
	retrieval, err := service.NewRetrievalService(embedder, st.index, st.chunks, retrievalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval service: %w", err)
	}

	generator, err := newGenerationService(cfg)
	if err != nil {
		return nil, err
	}

	sender := email.NewSender(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.GmailUser,
		Password: cfg.GmailAppPassword,
		From:     cfg.GmailUser,
	})
	if !cfg.HasSMTP() {
		log.Println("SMTP not configured, quiz result emails will be skipped")
	}
	app.notifications = jobs.NewNotificationQueue(sender, cfg.NotificationQueueSize, cfg.NotificationWorkers, notificationSendTimeout)

	app.ingestJobs = st.ingestJobs
	app.documents = service.NewDocumentService(st.documents, st.ingestJobs, objects, retrieval, st.tx)
	app.conversations = service.NewConversationService(st.conversations, cfg.MaxConversationHistory)
	app.tutor = service.NewTutorService(retrieval, generator, app.conversations)
	app.mastery = service.NewMasteryService(st.mastery, app.notifications, cfg.MasteryPolicy())
	app.quizzes = service.NewQuizService(st.quizzes, app.mastery)

	ok = true
	return app, nil
}

func (a *App) openStores(ctx context.Context, opts BuildOptions) (*stores, error) {
	cfg := a.cfg
	st := &stores{}

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.health["database"] = pool.Ping
		log.Println("connected to database")

		if !opts.NoMigrate {
			if err := database.Migrate(cfg.DatabaseURL, opts.MigrationsSource); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		st.documents = repository.NewDocumentRepository(pool)
		st.chunks = repository.NewChunkRepository(pool)
		st.ingestJobs = repository.NewIngestJobRepository(pool)
		st.quizzes = repository.NewQuizRepository(pool)
		st.mastery = repository.NewMasteryRepository(pool)
		st.index = repository.NewVectorIndexRepository(pool, cfg.VectorIndexName)
		st.tx = repository.NewTxRunner(pool)
		a.persistent = true
	} else {
		log.Println("DATABASE_URL not set, using in-memory stores")
		st.documents = memory.NewDocumentRepository()
		st.chunks = memory.NewChunkRepository()
		st.ingestJobs = memory.NewIngestJobRepository()
		st.quizzes = memory.NewQuizRepository()
		st.mastery = memory.NewMasteryRepository()
		st.index = memory.NewVectorIndex()
	}

	if cfg.HasRedis() {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		a.health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.conversations = repository.NewConversationRedisStore(client, cfg.ConversationTTL)
		log.Println("connected to redis")
	} else {
		st.conversations = memory.NewConversationStore()
	}

	return st, nil
}

// RouterConfig exposes the app's services as HTTP handlers.
func (a *App) RouterConfig() server.RouterConfig {
	return server.RouterConfig{
		AllowedOrigins:      a.cfg.AllowedOrigins(),
		MaxUploadBytes:      a.cfg.MaxUploadBytes,
		HealthHandler:       handlers.NewHealthHandler(a.health),
		DocumentHandler:     handlers.NewDocumentHandler(a.documents, a.cfg.MaxUploadBytes),
		ChatHandler:         handlers.NewChatHandler(a.tutor),
		ConversationHandler: handlers.NewConversationHandler(a.conversations),
		QuizHandler:         handlers.NewQuizHandler(a.quizzes),
		ProgressHandler:     handlers.NewProgressHandler(a.mastery),
	}
}

// IngestWorker returns the processor that drains pending ingest jobs.
func (a *App) IngestWorker() *jobs.IngestWorker {
	return jobs.NewIngestWorker(a.ingestJobs, a.documents, a.cfg.IngestBatchSize)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

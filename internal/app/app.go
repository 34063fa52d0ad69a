package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/catalog"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/migrations"
	"github.com/noah-isme/advising-api/pkg/cache"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/database"
	"github.com/noah-isme/advising-api/pkg/export"
	"github.com/noah-isme/advising-api/pkg/jobs"
	"github.com/noah-isme/advising-api/pkg/llm"
	"github.com/noah-isme/advising-api/pkg/portal"
	"github.com/noah-isme/advising-api/pkg/vectorstore"
)

// Repos groups the postgres and redis repositories.
type Repos struct {
	Students        *repository.StudentRepository
	Tracks          *repository.TrackRepository
	Courses         *repository.CourseRepository
	Records         *repository.RecordRepository
	Recommendations *repository.RecommendationRepository
	Favorites       *repository.FavoriteRepository
	Requirements    *repository.RequirementRepository
	Cache           *repository.CacheRepository
}

// Services groups the use cases served over HTTP and the CLI.
type Services struct {
	Metrics         *service.MetricsService
	Cache           *service.CacheService
	Sync            *service.SyncService
	Auth            *service.AuthService
	Catalog         *service.CatalogService
	Graduation      *service.GraduationService
	Vectors         *service.VectorService
	Recommendations *service.RecommendationService
	Favorites       *service.FavoriteService
	Requirements    *service.RequirementService
	Export          *service.ExportService
}

// App owns every long-lived dependency of the process.
type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Qdrant   *vectorstore.Qdrant
	Queue    *jobs.Queue
	Repos    Repos
	Services Services
}

// Options adjusts construction for non-server entry points.
type Options struct {
	// CatalogSource overrides the bundled dataset.
	CatalogSource catalog.Source
	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool
}

// New connects to postgres, redis and qdrant, applies migrations and wires services.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if !opts.SkipMigrations {
		applied, err := database.Migrate(ctx, db, migrations.Files, log)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("migrations applied", zap.Strings("files", applied))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, graduation cache disabled", zap.Error(err))
		redisClient = nil
	}

	qdrant, err := vectorstore.NewQdrant(vectorstore.Config{
		URL:        cfg.VectorStore.URL,
		Collection: cfg.VectorStore.Collection,
		VectorDim:  cfg.VectorStore.VectorDim,
		Timeout:    cfg.VectorStore.Timeout,
	}, nil, log.Named("qdrant"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
	}, &http.Client{Timeout: cfg.LLM.Timeout})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	portalClient, err := portal.NewClient(portal.Config{
		BaseURL:       cfg.Portal.BaseURL,
		LoginPath:     cfg.Portal.LoginPath,
		UserInfoPath:  cfg.Portal.UserInfoPath,
		GradePath:     cfg.Portal.GradePath,
		SessionCookie: cfg.Portal.SessionCookie,
		Charset:       cfg.Portal.Charset,
		Timeout:       cfg.Portal.Timeout,
	}, portal.WithHTTPClient(portalHTTPClient(cfg.Portal.Timeout)))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{Cfg: cfg, Log: log, DB: db, Redis: redisClient, Qdrant: qdrant}
	a.Repos = wireRepos(db, redisClient, log)
	a.Services = wireServices(cfg, log, a.Repos, qdrant, llmClient, portalClient, opts)

	a.Queue = jobs.NewQueue("vectors", a.Services.Vectors.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		Logger:     log.Named("jobs"),
	})
	a.Services.Vectors.AttachQueue(a.Queue)
	return a, nil
}

// portalHTTPClient keeps a larger idle pool for the portal host; every login issues
// three sequential requests against it.
func portalHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	return &http.Client{Timeout: timeout, Transport: transport}
}

func wireRepos(db *sqlx.DB, redisClient *redis.Client, log *zap.Logger) Repos {
	return Repos{
		Students:        repository.NewStudentRepository(db),
		Tracks:          repository.NewTrackRepository(db),
		Courses:         repository.NewCourseRepository(db),
		Records:         repository.NewRecordRepository(db),
		Recommendations: repository.NewRecommendationRepository(db),
		Favorites:       repository.NewFavoriteRepository(db),
		Requirements:    repository.NewRequirementRepository(db),
		Cache:           repository.NewCacheRepository(redisClient, log),
	}
}

func wireServices(cfg *config.Config, log *zap.Logger, repos Repos, qdrant *vectorstore.Qdrant, llmClient *llm.Client, portalClient *portal.Client, opts Options) Services {
	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repos.Cache, metrics, cfg.Graduation.CacheTTL, log.Named("cache"), cfg.Graduation.CacheEnabled)

	syncSvc := service.NewSyncService(service.SyncServiceParams{
		Portal:    portalClient,
		Tracks:    repos.Tracks,
		Courses:   repos.Courses,
		Records:   repos.Records,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    log.Named("sync"),
		Config: service.SyncConfig{
			PrimaryTrackLabel:   cfg.Portal.PrimaryTrackLabel,
			SecondaryTrackLabel: cfg.Portal.SecondaryTrackLabel,
		},
	})

	graduation := service.NewGraduationService(service.GraduationServiceParams{
		Students:        repos.Students,
		Records:         repos.Records,
		Recommendations: repos.Recommendations,
		Requirements:    repos.Requirements,
		Tracks:          repos.Tracks,
		Courses:         repos.Courses,
		Cache:           cacheSvc,
		Logger:          log.Named("graduation"),
		Config: service.GraduationConfig{
			TrackRequiredCredits: cfg.Graduation.TrackRequiredCredits,
			TotalRequiredCredits: cfg.Graduation.TotalRequiredCredits,
			CacheTTL:             cfg.Graduation.CacheTTL,
		},
	})

	embedder := service.NewEmbedder(cfg.LLM.Embedder, llmClient, cfg.VectorStore.VectorDim)
	vectors := service.NewVectorService(qdrant, repos.Courses, embedder, validate, log.Named("vectors"))

	return Services{
		Metrics: metrics,
		Cache:   cacheSvc,
		Sync:    syncSvc,
		Auth: service.NewAuthService(syncSvc, validate, log.Named("auth"), service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
			AdminKeyHash:      cfg.Admin.APIKeyHash,
		}),
		Catalog:    service.NewCatalogService(opts.CatalogSource, repos.Tracks, repos.Courses, cacheSvc, metrics, log.Named("catalog")),
		Graduation: graduation,
		Vectors:    vectors,
		Recommendations: service.NewRecommendationService(service.RecommendationServiceParams{
			Students:        repos.Students,
			Records:         repos.Records,
			Courses:         repos.Courses,
			Recommendations: repos.Recommendations,
			Vectors:         vectors,
			Chat:            llmClient,
			Cache:           cacheSvc,
			Metrics:         metrics,
			Logger:          log.Named("recommendations"),
			TopK:            cfg.VectorStore.TopK,
		}),
		Favorites:    service.NewFavoriteService(repos.Favorites, repos.Courses, validate, log.Named("favorites")),
		Requirements: service.NewRequirementService(repos.Requirements, cacheSvc, log.Named("requirements")),
		Export:       service.NewExportService(graduation, export.NewCSVExporter(), export.NewPDFExporter(cfg.Export.PDFFontPath), validate, log.Named("export")),
	}
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
}

// Close stops workers and releases connections.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Stop()
	}
	if a.Repos.Cache != nil {
		_ = a.Repos.Cache.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

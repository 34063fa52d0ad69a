package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/advising-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/advising-api/pkg/middleware/requestid"
)

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	if a.Cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Log))
	r.Use(corsmiddleware.New(a.Cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Services.Metrics))
	r.Use(middleware.WithResponseMeta())

	health := handler.NewMetricsHandler(a.Services.Metrics, a.readinessChecks())
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if a.Cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := handler.NewAuthHandler(a.Services.Auth, a.Services.Sync)
	graduation := handler.NewGraduationHandler(a.Services.Graduation, a.Services.Export)
	recommendations := handler.NewRecommendationHandler(a.Services.Recommendations)
	student := handler.NewStudentHandler(a.Services.Favorites, a.Services.Requirements)
	admin := handler.NewAdminHandler(a.Services.Catalog, a.Services.Vectors)

	api := r.Group(a.Cfg.APIPrefix)
	api.POST("/auth/login", auth.Login)

	secured := api.Group("", middleware.JWT(a.Services.Auth))
	secured.POST("/sync", auth.Sync)
	secured.GET("/dashboard", graduation.Dashboard)
	secured.GET("/roadmap", graduation.Roadmap)
	secured.GET("/roadmap/export", graduation.Export)
	secured.GET("/simulation", graduation.Simulation)
	secured.POST("/recommendations", recommendations.Recommend)
	secured.GET("/favorites", student.ListFavorites)
	secured.POST("/favorites", student.AddFavorite)
	secured.DELETE("/favorites/:code", student.RemoveFavorite)
	secured.GET("/requirements", student.GetRequirements)
	secured.PATCH("/requirements", student.UpdateRequirements)

	operators := api.Group("/admin", middleware.AdminKey(a.Services.Auth))
	operators.POST("/catalog/reload", admin.ReloadCatalog)
	operators.POST("/vectors/embed", admin.EmbedVectors)
	operators.GET("/vectors/jobs/:id", admin.JobStatus)
	operators.GET("/vectors/search", admin.SearchVectors)
	operators.GET("/vectors/health", admin.VectorHealth)
	operators.DELETE("/vectors", admin.ClearVectors)

	return r
}

func (a *App) readinessChecks() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return a.DB.PingContext(ctx) },
		"qdrant":   func(ctx context.Context) error { return a.Qdrant.Ready(ctx) },
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	} else if a.Cfg.Redis.Enabled {
		checks["redis"] = func(context.Context) error { return errors.New("redis not connected") }
	}
	return checks
}

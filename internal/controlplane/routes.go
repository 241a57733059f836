package controlplane

import (
	"net/http"
	"time"

	"github.com/astra-nvim/astra/internal/controlplane/handlers"
	"github.com/astra-nvim/astra/internal/controlplane/middleware"
	"github.com/astra-nvim/astra/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

type RouteConfig struct {
	Auth      middleware.TokenAuthConfig
	RateLimit int
}

func SetupRoutes(svc handlers.TaskService, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimiter := limiter.New(memory.NewStore(), limiter.Rate{
		Period: 1 * time.Second,
		Limit:  int64(routeConfig.RateLimit),
	})

	taskH := handlers.NewTaskHandler(svc)

	r.Use(middleware.AccessLog())
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorLog())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1Tasks := v1.Group("/tasks")
		{
			v1Tasks.GET("", taskH.List)
			v1Tasks.POST("", taskH.Submit)
			v1Tasks.POST("/cleanup", taskH.Cleanup)
			v1Tasks.GET("/:id", taskH.Get)
			v1Tasks.DELETE("/:id", taskH.Cancel)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    version.AppName,
		"version": version.Detailed(),
	})
}

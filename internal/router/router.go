package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/handlers"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
)

func NewRouter(cfg *config.Config, p *poller.Poller) *gin.Engine {
	r := gin.Default()

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck(p))
		api.GET("/status", handlers.GetStatus(cfg, p))
		api.GET("/hosts", handlers.GetHosts(cfg))
		api.GET("/services", handlers.GetServices(cfg))
		api.GET("/ws", handlers.WebSocket(cfg))

		incidents := api.Group("/incidents")
		{
			incidents.GET("", handlers.ListIncidents)
			incidents.GET("/:incident_id", handlers.GetIncident)
			incidents.POST("/:incident_id/comments", handlers.AddComment)
			incidents.PATCH("/:incident_id/pir", handlers.UpdatePostIncidentReview)
			incidents.PATCH("/:incident_id/acknowledge", handlers.AcknowledgeIncident)
		}
	}

	feed := r.Group("/feed")
	{
		feed.GET("/rss", handlers.GlobalFeed(cfg))
		feed.GET("/host/:host_name/rss", handlers.HostFeed(cfg))
		feed.GET("/service/:host_name/:service_description/rss", handlers.ServiceFeed(cfg))
	}

	return r
}

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API, socket *Socket) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// Session control endpoints
	r.POST("/session", api.Create)
	session := r.Group("/session/:id")
	{
		session.POST("/load", api.Load)
		session.POST("/play", api.Play)
		session.POST("/stop", api.Stop)
		session.POST("/notify", api.Notify)
		session.GET("/status", api.Status)
		session.DELETE("", api.Delete)
	}

	// Built-in lesson catalogue
	r.GET("/lessons", api.Lessons)

	// Per-session event stream
	r.GET("/ws", gin.WrapF(socket.Handle))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

// corsMiddleware handles CORS for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

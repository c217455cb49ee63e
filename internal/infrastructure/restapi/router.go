package restapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every API handler the router mounts.
type Handlers struct {
	Balances *BalanceHandler
	Rates    *RateHandler
	Realtime *RealtimeHandler
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(h Handlers, allowOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Группа для API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/balances", h.Balances.GetBalancesHandler)
		v1.POST("/balances/refresh", h.Balances.RefreshBalancesHandler)

		v1.GET("/rates", h.Rates.GetRatesHandler)
		v1.POST("/rates/refresh", h.Rates.RefreshRatesHandler)
		v1.GET("/rates/convert", h.Rates.ConvertHandler)

		v1.GET("/realtime/status", h.Realtime.StatusHandler)
		v1.GET("/realtime/messages", h.Realtime.MessagesHandler)
	}

	return router
}

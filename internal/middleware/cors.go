package middleware

import (
	"taskboard/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS builds the cors middleware from cfg.Security.CORS. A "*" origin
// allows every origin.
func CORS(cfg *config.Config) gin.HandlerFunc {
	cc := cfg.Security.CORS
	if !cc.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}
	if len(cc.AllowedMethods) > 0 {
		conf.AllowMethods = cc.AllowedMethods
	}
	if len(cc.AllowedHeaders) > 0 && cc.AllowedHeaders[0] != "*" {
		conf.AllowHeaders = cc.AllowedHeaders
	}
	for _, o := range cc.AllowedOrigins {
		if o == "*" {
			conf.AllowAllOrigins = true
			conf.AllowCredentials = false
			break
		}
	}
	if !conf.AllowAllOrigins {
		conf.AllowOrigins = cc.AllowedOrigins
	}
	if !conf.AllowAllOrigins && len(conf.AllowOrigins) == 0 {
		conf.AllowAllOrigins = true
	}
	return cors.New(conf)
}

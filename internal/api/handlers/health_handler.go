package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/version"
)

// HealthHandler reports service metadata and whether the database answers.
func HealthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, overall, dbStatus := http.StatusOK, "ok", "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			code, overall, dbStatus = http.StatusServiceUnavailable, "degraded", "unavailable"
		}
		c.JSON(code, gin.H{
			"status":     overall,
			"database":   dbStatus,
			"service":    version.Name,
			"version":    version.Version,
			"git_commit": version.GitCommit,
			"build_time": version.BuildTime,
		})
	}
}

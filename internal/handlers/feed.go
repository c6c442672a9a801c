package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/feeds"
)

func feedHours(ctx *gin.Context) int {
	hours := 24
	if raw := ctx.Query("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	return hours
}

func writeFeed(ctx *gin.Context, rss string, err error) {
	if err != nil {
		if errors.Is(err, feeds.ErrNoIncidents) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "No incidents found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate feed"})
		return
	}

	ctx.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func GlobalFeed(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		gen := feeds.NewGenerator(cfg.RSS, db.DB)
		rss, err := gen.GlobalFeed(feedHours(ctx))
		writeFeed(ctx, rss, err)
	}
}

func HostFeed(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		gen := feeds.NewGenerator(cfg.RSS, db.DB)
		rss, err := gen.HostFeed(ctx.Param("host_name"), feedHours(ctx))
		writeFeed(ctx, rss, err)
	}
}

func ServiceFeed(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		gen := feeds.NewGenerator(cfg.RSS, db.DB)
		rss, err := gen.ServiceFeed(ctx.Param("host_name"), ctx.Param("service_description"), feedHours(ctx))
		writeFeed(ctx, rss, err)
	}
}

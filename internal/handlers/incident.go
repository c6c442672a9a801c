package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/models"
	"github.com/statusbeacon-dev/statusbeacon/internal/tracker"
	"gorm.io/gorm"
)

type AddCommentRequest struct {
	Author      string `json:"author" binding:"required"`
	CommentText string `json:"comment_text" binding:"required"`
}

type UpdatePIRRequest struct {
	PostIncidentReviewURL string `json:"post_incident_review_url" binding:"required"`
}

type AcknowledgeRequest struct {
	Acknowledged *bool `json:"acknowledged" binding:"required"`
}

func ListIncidents(ctx *gin.Context) {
	tr := tracker.New(db.DB)

	activeOnly := ctx.Query("active_only") == "true"

	hours := 24
	if raw := ctx.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)

		if err != nil || parsed <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = parsed
	}

	var incidents []models.Incident
	var err error

	if activeOnly {
		incidents, err = tr.ActiveIncidents()
	} else {
		incidents, err = tr.RecentIncidents(hours)
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incidents"})
		return
	}

	ctx.JSON(http.StatusOK, incidents)
}

func GetIncident(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("incident_id"), 10, 64)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident ID"})
		return
	}

	var incident models.Incident
	if err := db.DB.Preload("Comments").Preload("NagiosComments").First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incident"})
		return
	}

	ctx.JSON(http.StatusOK, incident)
}

func AddComment(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("incident_id"), 10, 64)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident ID"})
		return
	}

	var req AddCommentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var incident models.Incident
	if err := db.DB.First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incident"})
		return
	}

	comment := models.Comment{
		IncidentID:  incident.ID,
		Author:      req.Author,
		CommentText: req.CommentText,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	ctx.JSON(http.StatusCreated, comment)
}

func UpdatePostIncidentReview(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("incident_id"), 10, 64)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident ID"})
		return
	}

	var req UpdatePIRRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var incident models.Incident
	if err := db.DB.First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incident"})
		return
	}

	incident.PostIncidentReviewURL = req.PostIncidentReviewURL

	if err := db.DB.Save(&incident).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update incident"})
		return
	}

	ctx.JSON(http.StatusOK, incident)
}

func AcknowledgeIncident(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("incident_id"), 10, 64)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident ID"})
		return
	}

	var req AcknowledgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var incident models.Incident
	if err := db.DB.First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incident"})
		return
	}

	incident.Acknowledged = *req.Acknowledged

	if err := db.DB.Model(&incident).Update("acknowledged", incident.Acknowledged).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update incident"})
		return
	}

	ctx.JSON(http.StatusOK, incident)
}

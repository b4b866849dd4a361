package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/dtos"
	"github.com/justsurfingit/jobtrackai/internal/models"
	"github.com/justsurfingit/jobtrackai/internal/services"
)

// JobHandler exposes direct CRUD access to tracked applications, bypassing
// the conversational path.
type JobHandler struct {
	Jobs services.JobStore
}

func NewJobHandler(jobs services.JobStore) *JobHandler {
	return &JobHandler{Jobs: jobs}
}

// HealthCheck is the GET /health endpoint.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListJobs is the GET /jobs endpoint. Requires user_id; accepts optional
// status and limit query parameters.
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	var status *models.JobStatus
	if raw := c.Query("status"); raw != "" {
		st := models.JobStatus(raw)
		if !st.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + raw})
			return
		}
		status = &st
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.Jobs.List(c.Request.Context(), userID, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// CreateJob is the POST /jobs endpoint.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if req.Status != "" && !models.JobStatus(req.Status).IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + req.Status})
		return
	}

	job, err := h.Jobs.Create(c.Request.Context(), &models.Job{
		UserID:         req.UserID,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		JobLink:        req.JobLink,
		JobDescription: req.JobDescription,
		Status:         req.Status,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, job)
}

// UpdateJobStatus is the PATCH /jobs/:id/status endpoint.
func (h *JobHandler) UpdateJobStatus(c *gin.Context) {
	jobID, ok := pathJobID(c)
	if !ok {
		return
	}
	var req dtos.JobStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	status := models.JobStatus(req.Status)
	if !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + req.Status})
		return
	}

	job, err := h.Jobs.UpdateStatus(c.Request.Context(), jobID, req.UserID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status: " + err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob is the DELETE /jobs/:id endpoint.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := pathJobID(c)
	if !ok {
		return
	}
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	deleted, err := h.Jobs.Delete(c.Request.Context(), jobID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete job: " + err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// JobStats is the GET /jobs/stats endpoint.
func (h *JobHandler) JobStats(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	stats, err := h.Jobs.Stats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats: " + err.Error()})
		return
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"by_status": stats, "total": total})
}

func queryUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func pathJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

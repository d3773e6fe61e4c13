package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
	"SpaceDealScanner/internal/usecase"
)

const maxListLimit = 500

type handlers struct {
	runner  ScrapeRunner
	repo    ports.DealRepository
	scoring config.ScoringConfig
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	{
		api.POST("/start-scrape", h.startScrape)
		api.POST("/stop-scrape", h.stopScrape)
		api.GET("/status", h.status)
		api.GET("/results", h.results)
		api.GET("/deals", h.deals)
		api.GET("/dashboard/heatmap", h.heatmap)
	}
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *handlers) startScrape(c *gin.Context) {
	var req domain.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	taskID, started, err := h.runner.Start(c.Request.Context(), req)
	if errors.Is(err, usecase.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !started {
		c.JSON(http.StatusAccepted, startResponse{TaskID: taskID, Status: "already_running", Message: "A scrape is already running"})
		return
	}
	c.JSON(http.StatusAccepted, startResponse{TaskID: taskID, Status: "started", Message: "Scrape started"})
}

func (h *handlers) stopScrape(c *gin.Context) {
	if h.runner.Stop() {
		c.JSON(http.StatusOK, gin.H{"stopped": true, "message": "Stop requested"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": false, "message": "No scrape is running"})
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}

type resultsResponse struct {
	Target  string                 `json:"target,omitempty"`
	Count   int                    `json:"count"`
	Results []domain.DealRecord    `json:"results"`
	Scores  []usecase.CompanyScore `json:"scores"`
}

// results lists relevant persisted deals with per-company interest scores.
func (h *handlers) results(c *gin.Context) {
	target := strings.TrimSpace(c.Query("target"))
	deals, err := h.repo.QueryDeals(c.Request.Context(), domain.DealFilter{SearchTarget: target})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if deals == nil {
		deals = []domain.DealRecord{}
	}

	c.JSON(http.StatusOK, resultsResponse{
		Target:  target,
		Count:   len(deals),
		Results: deals,
		Scores:  usecase.InterestScores(deals, splitList(target), h.scoring),
	})
}

func (h *handlers) deals(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	all, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))

	deals, err := h.repo.QueryDeals(c.Request.Context(), domain.DealFilter{
		SearchTarget:      strings.TrimSpace(c.Query("target")),
		Source:            strings.TrimSpace(c.Query("source")),
		IncludeIrrelevant: all,
		Limit:             limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if deals == nil {
		deals = []domain.DealRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(deals), "deals": deals})
}

func (h *handlers) heatmap(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deals, err := h.repo.QueryDeals(c.Request.Context(), domain.DealFilter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	scoring := h.scoring
	if limit > 0 {
		scoring.TopN = limit
	}
	scores := usecase.InterestScores(deals, splitList(c.Query("targets")), scoring)
	c.JSON(http.StatusOK, gin.H{"companies": scores, "deals": len(deals)})
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return min(n, maxListLimit), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

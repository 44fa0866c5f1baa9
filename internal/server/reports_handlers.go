package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/contributors"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/reports"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/trust"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type submitRequestPayload struct {
	EntityURL   string           `json:"entity_url"`
	ProductName string           `json:"product_name"`
	Category    string           `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Currency    string           `json:"currency"`
	Outcome     string           `json:"outcome"`
}

type tracesResponsePayload struct {
	Traces []traces.Trace `json:"traces"`
}

type snapshotResponsePayload struct {
	EntityURL    string `json:"entity_url"`
	SuccessRate  int    `json:"success_rate"`
	ReportVolume int    `json:"report_volume"`
	IsNew        bool   `json:"is_new"`
}

type adviceResponsePayload struct {
	Classification string `json:"classification"`
	Message        string `json:"message"`
	Matches        int    `json:"matches"`
	FailureRate    int    `json:"failure_rate"`
}

type annotatedTracePayload struct {
	traces.Trace
	HighRisk bool `json:"high_risk"`
}

type dashboardResponsePayload struct {
	SuccessRate   int                     `json:"success_rate"`
	Volume        decimal.Decimal         `json:"volume"`
	VolumeDisplay string                  `json:"volume_display"`
	RiskCount     int                     `json:"risk_count"`
	Traces        []annotatedTracePayload `json:"traces"`
}

type shareResponsePayload struct {
	Text string `json:"text"`
}

type standingPayload struct {
	Position    int    `json:"position"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ReportCount int    `json:"report_count"`
	Label       string `json:"label"`
}

type leaderboardResponsePayload struct {
	Contributors []standingPayload `json:"contributors"`
}

type levelPayload struct {
	Level    int `json:"level"`
	Progress int `json:"progress"`
	Goal     int `json:"goal"`
}

type profileMetricsPayload struct {
	SuccessRate        int             `json:"success_rate"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	TotalSpentDisplay  string          `json:"total_spent_display"`
	MonthlyCount       int             `json:"monthly_count"`
	NetworkSuccessRate int             `json:"network_success_rate"`
}

type profileResponsePayload struct {
	UserID      string                `json:"user_id"`
	DisplayName string                `json:"display_name"`
	ReportCount int                   `json:"report_count"`
	Tier        string                `json:"tier"`
	Level       levelPayload          `json:"level"`
	Metrics     profileMetricsPayload `json:"metrics"`
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	stored, err := h.reports.Submit(c.Request.Context(), userID, reports.SubmitInput{
		EntityURL:   request.EntityURL,
		ProductName: request.ProductName,
		Category:    request.Category,
		Price:       request.Price,
		Currency:    request.Currency,
		Outcome:     request.Outcome,
	})
	if err != nil {
		var validationErr *traces.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trace", "field": validationErr.Field})
			return
		}
		h.logger.Error("failed to submit trace", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit_failed"})
		return
	}

	c.JSON(http.StatusCreated, stored)
}

func (h *httpHandler) handleMyTraces(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	records, err := h.reports.MyTraces(c.Request.Context(), userID)
	if err != nil {
		h.respondCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracesResponsePayload{Traces: records})
}

func (h *httpHandler) handleRecentFeed(c *gin.Context) {
	records, err := h.reports.RecentFeed(c.Request.Context())
	if err != nil {
		h.respondCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracesResponsePayload{Traces: records})
}

func (h *httpHandler) respondCollectionError(c *gin.Context, err error) {
	if errors.Is(err, reports.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no_data_available"})
		return
	}
	h.logger.Error("failed to load traces", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func (h *httpHandler) handleSnapshot(c *gin.Context) {
	url := strings.TrimSpace(c.Param("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snapshot := h.reports.Snapshot(c.Request.Context(), url)
	c.JSON(http.StatusOK, snapshotResponsePayload{
		EntityURL:    snapshot.EntityURL,
		SuccessRate:  snapshot.SuccessRate,
		ReportVolume: snapshot.ReportVolume,
		IsNew:        snapshot.IsNew,
	})
}

func (h *httpHandler) handleAdvice(c *gin.Context) {
	advice, ok := h.reports.Advice(c.Request.Context(), c.Query("url"))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, adviceResponsePayload{
		Classification: string(advice.Classification),
		Message:        advice.Message,
		Matches:        advice.Matches,
		FailureRate:    advice.FailureRate,
	})
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	dashboard := h.reports.Dashboard(c.Request.Context(), trust.DashboardFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
	})
	response := dashboardResponsePayload{
		SuccessRate:   dashboard.SuccessRate,
		Volume:        dashboard.Volume,
		VolumeDisplay: dashboard.VolumeDisplay,
		RiskCount:     dashboard.RiskCount,
		Traces:        make([]annotatedTracePayload, 0, len(dashboard.Traces)),
	}
	for _, annotated := range dashboard.Traces {
		response.Traces = append(response.Traces, annotatedTracePayload{Trace: annotated.Trace, HighRisk: annotated.HighRisk})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleShare(c *gin.Context) {
	text, err := h.reports.ShareText(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, reports.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.respondCollectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, shareResponsePayload{Text: text})
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	standings := h.reports.Leaderboard(c.Request.Context())
	c.JSON(http.StatusOK, leaderboardResponsePayload{Contributors: standingPayloads(standings)})
}

func standingPayloads(standings []contributors.Standing) []standingPayload {
	payloads := make([]standingPayload, 0, len(standings))
	for _, standing := range standings {
		payloads = append(payloads, standingPayload{
			Position:    standing.Position,
			UserID:      standing.Contributor.UserID,
			DisplayName: standing.Contributor.DisplayName,
			ReportCount: standing.Contributor.ReportCount,
			Label:       standing.Label,
		})
	}
	return payloads
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	profile, err := h.reports.Profile(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to build profile", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, profileResponsePayload{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		ReportCount: profile.ReportCount,
		Tier:        string(profile.Tier),
		Level: levelPayload{
			Level:    profile.Level.Level,
			Progress: profile.Level.Progress,
			Goal:     profile.Level.Goal,
		},
		Metrics: profileMetricsPayload{
			SuccessRate:        profile.Metrics.SuccessRate,
			TotalSpent:         profile.Metrics.TotalSpent,
			TotalSpentDisplay:  profile.Metrics.TotalSpentDisplay,
			MonthlyCount:       profile.Metrics.MonthlyCount,
			NetworkSuccessRate: profile.Metrics.NetworkSuccessRate,
		},
	})
}

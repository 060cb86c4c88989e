package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
	"trendscope-pipeline/internal/services"
)

// SlackHandler terminates the Slack-facing HTTP surface: the slash
// command, interactive actions, and health.
type SlackHandler struct {
	verifier    *services.SignatureVerifier
	rateLimiter *services.RateLimiter
	scheduler   *services.Scheduler
	workspaceID string
	logger      *logger.Logger
}

func NewSlackHandler(
	verifier *services.SignatureVerifier,
	rateLimiter *services.RateLimiter,
	scheduler *services.Scheduler,
	workspaceID string,
	log *logger.Logger,
) *SlackHandler {
	return &SlackHandler{
		verifier:    verifier,
		rateLimiter: rateLimiter,
		scheduler:   scheduler,
		workspaceID: workspaceID,
		logger:      log,
	}
}

func (h *SlackHandler) RegisterRoutes(router *gin.Engine) {
	slack := router.Group("/slack", h.VerifyRequest())
	slack.POST("/trending-news", h.HandleTrendingNews)
	slack.POST("/interactive", h.HandleInteractive)
}

// VerifyRequest authenticates every Slack request before any form
// parsing: signature over the raw body, then workspace allowlist. The
// body is restored afterwards so gin can still bind the form.
func (h *SlackHandler) VerifyRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		timestamp := c.GetHeader("X-Slack-Request-Timestamp")
		signature := c.GetHeader("X-Slack-Signature")

		if err := h.verifier.Verify(timestamp, signature, body); err != nil {
			h.logger.WithError(err).WithFields(logger.Fields{
				"remote": c.ClientIP(),
			}).Warn("rejected Slack request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Slack signature"})
			return
		}

		if h.workspaceID != "" && h.extractTeamID(c) != h.workspaceID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "request from unauthorized workspace"})
			return
		}

		// Signature verification consumed the body; hand gin a fresh copy.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// extractTeamID reads the workspace from a slash command form or, for
// interactive requests, from inside the payload JSON.
func (h *SlackHandler) extractTeamID(c *gin.Context) string {
	if teamID := c.PostForm("team_id"); teamID != "" {
		return teamID
	}

	if raw := c.PostForm("payload"); raw != "" {
		var payload struct {
			Team struct {
				ID string `json:"id"`
			} `json:"team"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return payload.Team.ID
		}
	}

	return ""
}

// HandleTrendingNews processes the slash command. Validation problems
// answer 200 with an ephemeral message so the user sees the reason
// instead of Slack's generic failure banner.
func (h *SlackHandler) HandleTrendingNews(c *gin.Context) {
	userID := c.PostForm("user_id")
	userName := c.PostForm("user_name")
	channelID := c.PostForm("channel_id")
	callbackURL := c.PostForm("response_url")
	commandText := c.PostForm("text")

	if !models.ValidUserID(userID) {
		ephemeral(c, "⚠️ Invalid user ID format.")
		return
	}
	if !models.ValidChannelID(channelID) {
		ephemeral(c, "⚠️ Invalid channel ID format.")
		return
	}
	if callbackURL != "" && !models.ValidCallbackURL(callbackURL) {
		ephemeral(c, "⚠️ Invalid response URL.")
		return
	}

	if err := h.rateLimiter.Check(c.Request.Context(), userID); err != nil {
		ephemeral(c, "⚠️ "+userMessage(err))
		return
	}

	req := models.ParseCommandText(commandText)
	reqCtx := models.RequestContext{
		UserID:      userID,
		UserName:    userName,
		ChannelID:   channelID,
		CallbackURL: callbackURL,
	}

	job := models.NewJob(req, reqCtx)
	if err := h.scheduler.Enqueue(job); err != nil {
		h.logger.WithError(err).WithFields(logger.Fields{"user_id": userID}).Error("failed to queue analysis")
		ephemeral(c, "⚠️ "+userMessage(err))
		return
	}

	h.rateLimiter.Record(c.Request.Context(), userID)

	params := formatRequestForDisplay(req)
	c.JSON(http.StatusOK, gin.H{
		"response_type": "in_channel",
		"text":          "🌀 Analyzing trending news, you will be notified when complete.",
		"blocks": []gin.H{
			{
				"type": "section",
				"text": gin.H{
					"type": "mrkdwn",
					"text": "🌀 *Analyzing trending news*  You will be notified here when the analysis is complete.",
				},
			},
			{
				"type": "context",
				"elements": []gin.H{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("(Job ID: `%s`) Parameters: %s", job.ID, params),
					},
				},
			},
		},
	})
}

// HandleInteractive processes Block Kit action callbacks. The only
// supported action re-runs an earlier analysis with its original
// parameters.
func (h *SlackHandler) HandleInteractive(c *gin.Context) {
	var payload struct {
		User struct {
			ID   string `json:"id"`
			Name string `json:"username"`
		} `json:"user"`
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
		ResponseURL string `json:"response_url"`
		Actions     []struct {
			ActionID string `json:"action_id"`
			Value    string `json:"value"`
		} `json:"actions"`
	}

	if err := json.Unmarshal([]byte(c.PostForm("payload")), &payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"text": "❌ Invalid request format"})
		return
	}

	if len(payload.Actions) == 0 {
		c.JSON(http.StatusOK, gin.H{"text": "❌ Unknown action"})
		return
	}

	switch payload.Actions[0].ActionID {
	case "rerun_analysis":
		h.rerunAnalysis(c, payload.User.ID, payload.User.Name, payload.Channel.ID, payload.ResponseURL, payload.Actions[0].Value)
	default:
		c.JSON(http.StatusOK, gin.H{"text": "❌ Unknown action"})
	}
}

func (h *SlackHandler) rerunAnalysis(c *gin.Context, userID, userName, channelID, callbackURL, value string) {
	var req models.AnalysisRequest
	if err := json.Unmarshal([]byte(value), &req); err != nil {
		c.JSON(http.StatusOK, gin.H{"text": "❌ Invalid request format"})
		return
	}

	if req.Category == "" {
		req.Category = models.DefaultCategory
	}
	if req.Total < models.MinTotal || req.Total > models.MaxTotal {
		req.Total = models.DefaultTotal
	}
	if req.OutputFormat != models.FormatJSON {
		req.OutputFormat = models.FormatMarkdown
	}

	if err := h.rateLimiter.Check(c.Request.Context(), userID); err != nil {
		ephemeral(c, "⚠️ "+userMessage(err))
		return
	}

	reqCtx := models.RequestContext{
		UserID:      userID,
		UserName:    userName,
		ChannelID:   channelID,
		CallbackURL: callbackURL,
	}

	job := models.NewJob(req, reqCtx)
	if err := h.scheduler.Enqueue(job); err != nil {
		ephemeral(c, "⚠️ "+userMessage(err))
		return
	}

	h.rateLimiter.Record(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{
		"response_type": "ephemeral",
		"text":          fmt.Sprintf("🔄 Re-running analysis (Job ID: `%s`)", job.ID),
	})
}

func ephemeral(c *gin.Context, text string) {
	c.JSON(http.StatusOK, gin.H{
		"response_type": "ephemeral",
		"text":          text,
	})
}

// userMessage uses the coded message for application errors and hides
// internals for everything else.
func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Try again in a few moments."
}

func formatRequestForDisplay(req models.AnalysisRequest) string {
	fields := map[string]string{
		"category":      req.Category,
		"total":         fmt.Sprintf("%d", req.Total),
		"from":          req.From,
		"to":            req.To,
		"query":         req.Query,
		"output_format": req.OutputFormat,
	}

	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if value == "" || value == "0" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("`%s: %s`", key, fields[key]))
	}

	return strings.Join(parts, ", ")
}

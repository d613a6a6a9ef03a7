package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// TopicFilter decides whether a message is an HR question.
type TopicFilter struct {
	keywords []string
}

func NewTopicFilter(keywords []string) TopicFilter {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return TopicFilter{keywords: kw}
}

// Allows reports whether text mentions any keyword. An empty keyword list
// allows everything.
func (f TopicFilter) Allows(text string) bool {
	if len(f.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func createChatHandler(svc domain.ChatService, filter TopicFilter, offTopicReply string, rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"statusCode": http.StatusBadRequest,
				"message":    "message is required",
			})
			return
		}
		if !filter.Allows(req.Message) {
			rec.IncQuery(metrics.OutcomeOffTopic)
			c.JSON(http.StatusOK, domain.FinalAnswer{Reply: offTopicReply, Sources: []string{}})
			return
		}
		ans, err := svc.HandleQuery(ctx, req.Message)
		if err != nil {
			_ = c.Error(err)
			logger.FromContext(ctx).Error("Chat query failed", "error", err, "retrieval", isRetrievalError(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"statusCode": http.StatusInternalServerError,
				"message":    "Internal server error",
			})
			return
		}
		c.JSON(http.StatusOK, ans)
	}
}

func createHealthHandler(health domain.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		llm := health.Check(c.Request.Context())
		status := "ok"
		if !llm {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "llm": llm})
	}
}

func isRetrievalError(err error) bool {
	var re *domain.RetrievalError
	return errors.As(err, &re)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/leaseline/lead-gateway/internal/llm"
)

// MockModel simulates an OpenAI-compatible chat completions provider. It
// answers tool-equipped requests with a canned generate_report call and
// everything else with a canned lead inquiry, so the whole pipeline can run
// without a real model behind it.
type MockModel struct {
	failRate float64
	minDelay time.Duration
	maxDelay time.Duration
	serverID string
	rng      *rand.Rand
}

func NewMockModel(failRate float64, minDelay, maxDelay time.Duration) *MockModel {
	return &MockModel{
		failRate: failRate,
		minDelay: minDelay,
		maxDelay: maxDelay,
		serverID: "MOCK_LLM_" + uuid.New().String()[:8],
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var cannedLeads = []string{
	"Hi! I saw your listing for the 2-bedroom on Maple Street. Is it still available for a November move-in? Also, do you allow cats?",
	"Hello, I'm interested in the one-bedroom unit. What are the parking options and is water included in the rent?",
	"Good morning. Could I schedule a tour this weekend? I'd also like to know the application fee and lease terms.",
	"Hey, quick question about the studio apartment: is there in-unit laundry? And what's the earliest move-in date?",
	"Hi there, my partner and I are relocating for work next month. Is the 2BR pet friendly, and what's the deposit?",
}

func (m *MockModel) randomDelay() time.Duration {
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	delta := m.maxDelay - m.minDelay
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockModel) shouldFail() bool {
	return m.rng.Float64() < m.failRate
}

// cannedReportArgs builds plausible generate_report arguments. Scores are
// mostly good with a little jitter, every rationale non-empty.
func (m *MockModel) cannedReportArgs() string {
	score := func() int { return 6 + m.rng.Intn(5) }
	args := map[string]any{
		"platform_score":            score(),
		"platform_rationale":        "Length and tone suit the platform.",
		"question_score":            score(),
		"question_rationale":        "The prospect's questions are addressed.",
		"professionalism_score":     score(),
		"professionalism_rationale": "Courteous, no spelling issues.",
		"personalization_score":     score(),
		"personalization_rationale": "Responds to the specifics of the inquiry.",
		"legal_score":               10,
		"legal_rationale":           "No fair housing concerns.",
		"actionability_score":       score(),
		"actionability_rationale":   "Offers a concrete next step.",
	}
	b, _ := json.Marshal(args)
	return string(b)
}

func (m *MockModel) complete(req *llm.ChatRequest) *llm.ChatResponse {
	time.Sleep(m.randomDelay())

	resp := &llm.ChatResponse{
		ID:      "chatcmpl-" + uuid.New().String()[:12],
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
	}

	if hasTool(req, "generate_report") {
		resp.Choices = []llm.Choice{{
			Message: llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   "call_" + uuid.New().String()[:8],
					Type: "function",
					Function: llm.FunctionCall{
						Name:      "generate_report",
						Arguments: m.cannedReportArgs(),
					},
				}},
			},
			FinishReason: "tool_calls",
		}}
		return resp
	}

	resp.Choices = []llm.Choice{{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: cannedLeads[m.rng.Intn(len(cannedLeads))],
		},
		FinishReason: "stop",
	}}
	return resp
}

func hasTool(req *llm.ChatRequest, name string) bool {
	for _, t := range req.Tools {
		if t.Function.Name == name {
			return true
		}
	}
	return false
}

type Handler struct {
	model *MockModel
}

func NewHandler(model *MockModel) *Handler {
	return &Handler{model: model}
}

func (h *Handler) ChatCompletions(c *gin.Context) {
	var req llm.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"message": "invalid request: " + err.Error(), "type": "invalid_request_error"},
		})
		return
	}

	if h.model.shouldFail() {
		log.Warn().Str("model", req.Model).Msg("simulating provider failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{"message": "the model is overloaded", "type": "server_error"},
		})
		return
	}

	resp := h.model.complete(&req)

	log.Info().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Str("finish_reason", resp.Choices[0].FinishReason).
		Msg("completion served")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"server_id": h.model.serverID,
		"timestamp": time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	router.POST("/v1/chat/completions", handler.ChatCompletions)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	failRate := getEnvFloat("FAIL_RATE", 0)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("fail_rate", failRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock llm provider")

	model := NewMockModel(failRate, minDelay, maxDelay)
	router := SetupRouter(NewHandler(model))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

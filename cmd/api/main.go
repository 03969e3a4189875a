package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leaseline/lead-gateway/internal/config"
	"github.com/leaseline/lead-gateway/internal/handlers"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/queue"
	"github.com/leaseline/lead-gateway/internal/repository"
	"github.com/leaseline/lead-gateway/internal/services"
	xhttp "github.com/leaseline/lead-gateway/pkg/http"
	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/leaseline/lead-gateway/pkg/pg"
	"github.com/leaseline/lead-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	gradingQueue, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().GradingQueueName,
		ConsumerGroup:     config.Get().GradingConsumerGroup,
		ConsumerName:      config.Get().GradingConsumerName,
		MaxRetries:        config.Get().GradingMaxRetries,
		VisibilityTimeout: config.Get().GradingVisibilityTimeout,
		PollInterval:      config.Get().GradingPollInterval,
		BatchSize:         config.Get().GradingBatchSize,
		MaxLen:            config.Get().GradingQueueMaxLen,
		EnableDLQ:         config.Get().GradingEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating grading queue", "error", err)
		return
	}

	llmGateway, err := llm.NewGateway(&llm.Config{
		Providers: llmProviders(),
		APIKey:    config.Get().LLMAPIKey,
		Timeout:   config.Get().LLMTimeout,
		MaxRetries: 3,
		RetryDelay: time.Millisecond * 100,
		MaxConns:   100,
	})
	if err != nil {
		logger.Error("failed creating llm gateway", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)

	leadService := services.NewLeadService(messageRepo, llmGateway, config.Get().LeadModel)
	replyService := services.NewReplyService(messageRepo, gradingQueue)
	healthService := services.NewHealthService(db, redisAdap)

	messageHandler := handlers.NewMessageHandler(leadService, replyService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group(handlers.APIPrefix)
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func llmProviders() []llm.ProviderConfig {
	providers := []llm.ProviderConfig{
		{Name: "primary", URL: config.Get().LLMPrimaryURL, Weight: 100},
	}
	if config.Get().LLMSecondaryURL != "" {
		providers = append(providers, llm.ProviderConfig{
			Name: "secondary", URL: config.Get().LLMSecondaryURL, Weight: 80,
		})
	}
	return providers
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}

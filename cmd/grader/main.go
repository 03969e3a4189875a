package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leaseline/lead-gateway/internal/config"
	"github.com/leaseline/lead-gateway/internal/grading"
	"github.com/leaseline/lead-gateway/internal/llm"
	"github.com/leaseline/lead-gateway/internal/repository"
	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/leaseline/lead-gateway/pkg/pg"
	"github.com/leaseline/lead-gateway/pkg/prom"
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

	providers := []llm.ProviderConfig{
		{Name: "primary", URL: config.Get().LLMPrimaryURL, Weight: 100},
	}
	if config.Get().LLMSecondaryURL != "" {
		providers = append(providers, llm.ProviderConfig{
			Name: "secondary", URL: config.Get().LLMSecondaryURL, Weight: 80,
		})
	}
	llmGateway, err := llm.NewGateway(&llm.Config{
		Providers:  providers,
		APIKey:     config.Get().LLMAPIKey,
		Timeout:    config.Get().LLMTimeout,
		MaxRetries: 3,
		RetryDelay: time.Millisecond * 100,
		MaxConns:   100,
	})
	if err != nil {
		logger.Error("failed creating llm gateway", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	scorecardRepo := repository.NewScorecardRepository(db)

	grader := grading.NewGrader(messageRepo, scorecardRepo, llmGateway, config.Get().GraderModel)
	idempotency := grading.NewIdempotencyService(redisAdap, grading.DefaultIdempotencyConfig())

	service, err := grading.NewProcessorService(redisAdap)
	if err != nil {
		logger.Error("failed to create grading service", "error", err)
		return
	}
	service.RegisterProcessor(grading.NewScorecardProcessor(grader, messageRepo, idempotency))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start grading service", "error", err)
		}
	}()

	<-c
	service.Stop()
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

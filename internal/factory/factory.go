package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"phone-auth-service/internal/bucketing"
	"phone-auth-service/internal/client"
	"phone-auth-service/internal/config"
	"phone-auth-service/internal/hashing"
	redisrepo "phone-auth-service/internal/repository/redis"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/service"
	"phone-auth-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config *config.Config

	// Clients
	redisClient   *client.RedisClient
	scyllaClient  *scylla.ScyllaClient
	kafkaProducer *client.KafkaProducer

	// Repositories
	userRepository  scylla.UserRepository
	tokenRepository scylla.TokenRepository

	// Services
	authService *service.AuthService

	closeOnce sync.Once
}

// NewFactory loads configuration and initializes all clients, repositories
// and services.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	f.initializeServices()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled))

	return f, nil
}

func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient, err := client.NewRedisClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = redisClient
	if err := f.redisClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}

	scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient
	if err := f.scyllaClient.HealthCheck(); err != nil {
		return fmt.Errorf("scylla health check: %w", err)
	}

	// Kafka is optional: the flow runs without its audit trail.
	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeServices() {
	cfg := f.config

	bucketingMgr := bucketing.NewManager(0)
	f.userRepository = scylla.NewUserRepository(f.scyllaClient, bucketingMgr)
	f.tokenRepository = scylla.NewTokenRepository(f.scyllaClient)

	var events service.EventPublisher = service.NoopEventPublisher{}
	if f.kafkaProducer != nil {
		events = service.NewKafkaEventPublisher(f.kafkaProducer, cfg.Kafka.Topic)
	}

	rateLimitCache := redisrepo.NewRateLimitCache(f.redisClient)
	otpCache := redisrepo.NewOTPCache(f.redisClient)

	guard := service.NewAttemptGuard(rateLimitCache, events, cfg.Auth)
	otpIssuer := service.NewOtpIssuer(otpCache, cfg.Auth)
	tokenIssuer := service.NewTokenIssuer(f.tokenRepository, f.userRepository)
	hasher := hashing.NewHasher()

	f.authService = service.NewAuthService(
		guard, otpIssuer, tokenIssuer, f.userRepository, hasher, events, cfg.Auth.ExposeOTP)
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) AuthService() *service.AuthService {
	return f.authService
}

// Close shuts down all clients exactly once.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		util.Sync()
	})
}

package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/config"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/doctors"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/events"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, doctor directory cache disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildListingCache wraps the Redis client for doctor lookups. A nil client
// disables caching.
func BuildListingCache(client *redis.Client, cfg *appconfig.Config) *doctors.ListingCache {
	if client == nil || cfg == nil {
		return nil
	}
	return doctors.NewListingCache(client, cfg.DirectoryCacheTTL)
}

// BuildEventPublisher returns an SQS publisher when a queue is configured and
// a log-only publisher otherwise.
func BuildEventPublisher(awsCfg *aws.Config, cfg *appconfig.Config, logger *logging.Logger) events.Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.AppointmentEventsQueueURL) == "" {
		logger.Info("appointment events queue not configured, events will be logged only")
		return events.NewLogPublisher(logger)
	}
	client := sqs.NewFromConfig(*awsCfg)
	logger.Info("appointment events publishing to SQS", "queue_url", cfg.AppointmentEventsQueueURL)
	return events.NewSQSPublisher(client, cfg.AppointmentEventsQueueURL)
}

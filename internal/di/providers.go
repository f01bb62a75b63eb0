package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"ValueFlow/internal/domain/repository"
	"ValueFlow/internal/engine/graph"
	"ValueFlow/internal/engine/registry"
	"ValueFlow/internal/handler/api"
	mid "ValueFlow/internal/middleware"
	internalrepo "ValueFlow/internal/repository"
	"ValueFlow/internal/service/feed"
	"ValueFlow/internal/usecase"
	pkgcache "ValueFlow/pkg/cache"
	pkgch "ValueFlow/pkg/clickhouse"
	"ValueFlow/pkg/config"
	pkgkafka "ValueFlow/pkg/kafka"
	applogger "ValueFlow/pkg/logger"
	"ValueFlow/pkg/metrics"
	"ValueFlow/pkg/queue"
	"ValueFlow/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "json", Output: "stdout"}
	if cfg.Environment == "development" {
		lc.Level = "debug"
		lc.Format = "console"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideValuationSink creates the ClickHouse-backed valuation sink and its tables.
func ProvideValuationSink(chClient *pkgch.Client, l *applogger.Logger) (repository.ValuationSink, error) {
	sink := internalrepo.NewCHValuationStore(chClient)
	sink.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		return nil, fmt.Errorf("valuation sink init: %w", err)
	}
	return sink, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideResultPublisher creates the Kafka publisher for resolved values.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ResultPublisher {
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBatchHandler registers the handler for the observation batch topic.
func ProvideKafkaBatchHandler(proc *usecase.WindowProcessor, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaBatchHandler {
	return usecase.NewKafkaBatchHandler(cfg.Kafka.Topic, proc, metrics)
}

// ProvideRegistry creates the shared item registry.
func ProvideRegistry() *registry.Registry {
	return registry.New()
}

// ProvideEngineSettings maps config onto engine tunables.
func ProvideEngineSettings(cfg *config.Config) usecase.EngineSettings {
	return usecase.EngineSettings{
		BaseSymbol:      cfg.Engine.BaseSymbol,
		MinConfidence:   cfg.Engine.MinConfidence,
		MinValue:        cfg.Engine.MinValue,
		MaxValue:        cfg.Engine.MaxValue,
		MaxGap:          cfg.Engine.MaxGap,
		Frequency:       cfg.Engine.Frequency,
		PrioritySources: cfg.Engine.PrioritySources,
		PageRank: graph.PageRankConfig{
			Teleport:  cfg.Engine.PageRank.Teleport,
			MaxIter:   cfg.Engine.PageRank.MaxIter,
			Tolerance: cfg.Engine.PageRank.Tolerance,
		},
		ShortWindow:      cfg.Engine.Analytics.ShortWindow,
		LongWindow:       cfg.Engine.Analytics.LongWindow,
		AnomalyThreshold: cfg.Engine.Analytics.AnomalyThreshold,
		VolWindow:        cfg.Engine.Analytics.VolWindow,
	}
}

// ProvideWindowProcessor creates the window processor use case.
func ProvideWindowProcessor(
	settings usecase.EngineSettings,
	reg *registry.Registry,
	sink repository.ValuationSink,
	pub repository.ResultPublisher,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.WindowProcessor {
	return usecase.NewWindowProcessor(settings, reg, sink, pub, metrics, l)
}

// ProvideBatchFeed creates the WebSocket batch feed adapter.
func ProvideBatchFeed(cfg *config.Config) repository.BatchFeed {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.RestURL,
		cfg.Feed.Sources,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideBatchCollector creates the feed collector, or nil when the feed is disabled.
func ProvideBatchCollector(
	cfg *config.Config,
	stream repository.BatchFeed,
	proc *usecase.WindowProcessor,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.BatchCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	// Screen and throttle batches between the WebSocket and the processor
	pipe := mid.NewIngestPipeline(proc, metrics,
		mid.WithMaxBatchesPerSecond(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewBatchCollector(stream, proc, metrics, pipe, l)
}

// ProvideWindowRunner creates the periodic window loop.
func ProvideWindowRunner(proc *usecase.WindowProcessor, cfg *config.Config, l *applogger.Logger) *usecase.WindowRunner {
	return usecase.NewWindowRunner(proc, cfg.Engine.WindowSpan, l)
}

// ProvideCache creates the read-side cache per config (memory by default,
// layered memory over Redis when cache.type is redis).
func ProvideCache(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, error) {
	if cfg.Cache.Type != "redis" {
		return pkgcache.NewMemoryCache(), nil
	}

	host, port, err := splitRedisAddr(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache redis addr: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("addr", cfg.Cache.Redis.Addr))
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideJobQueue creates the Redis-backed job queue when Redis is configured.
// The async window-processing job is registered here; without Redis the HTTP
// handler falls back to synchronous processing.
func ProvideJobQueue(cfg *config.Config, c pkgcache.Service, proc *usecase.WindowProcessor, l *applogger.Logger) *queue.RedisQueue {
	rc, ok := leafRedis(c)
	if !ok {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, rc.Client())
	q.RegisterJob(usecase.NewProcessWindowJob(proc))
	return q
}

// ProvideEngineHandler creates the HTTP handler for the engine API.
func ProvideEngineHandler(
	l *applogger.Logger,
	proc *usecase.WindowProcessor,
	sink repository.ValuationSink,
	c pkgcache.Service,
	jobs *queue.RedisQueue,
) *api.EngineHandler {
	var js queue.QueueService
	if jobs != nil {
		js = jobs
	}
	return api.NewEngineHandler(l, proc, sink, c, js)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.EngineHandler,
	proc *usecase.WindowProcessor,
	collector *usecase.BatchCollector,
	runner *usecase.WindowRunner,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBatchHandler,
	jobs *queue.RedisQueue,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewLoggingHook(l))
	}
	return server.New(cfg, l, handler, proc, collector, runner, consumer, kh, jobs, chClient)
}

func splitRedisAddr(addr string) (string, int, error) {
	if addr == "" {
		return "localhost", 6379, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// leafRedis unwraps the cache service down to its Redis client, if any.
func leafRedis(c pkgcache.Service) (*pkgcache.RedisCache, bool) {
	switch v := c.(type) {
	case *pkgcache.RedisCache:
		return v, true
	case *pkgcache.LayeredCache:
		return v.Redis(), v.Redis() != nil
	default:
		return nil, false
	}
}

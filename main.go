package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/appetiteclub/fulfillment/internal/events"
	"github.com/appetiteclub/fulfillment/internal/fulfillment"
	"github.com/appetiteclub/fulfillment/internal/menuclient"
	"github.com/appetiteclub/fulfillment/internal/mongo"
	"github.com/appetiteclub/fulfillment/pkg"
)

const (
	appNamespace = "FULFILLMENT"
	appName      = "fulfillment"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	orderRepo := mongo.NewOrderRepo(config, logger)

	menuURL := config.GetStringOrDef("services.menu.url", "http://localhost:8083")
	menuClient := menuclient.NewHTTPClient(menuURL)

	index := fulfillment.NewClassificationIndex(
		menuClient,
		durationFromConfig(config, "fulfillment.catalog_refresh", fulfillment.DefaultCatalogRefresh),
		logger,
	)
	router := fulfillment.NewStationRouter(index)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	publisher, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	subscriber, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	catalogSubscriber := events.NewCatalogSubscriber(subscriber, index, logger)

	service := fulfillment.NewService(fulfillment.ServiceDeps{
		Repo:              orderRepo,
		Router:            router,
		Publisher:         publisher,
		AutoCompleteDelay: durationFromConfig(config, "fulfillment.autocomplete_delay", fulfillment.DefaultAutoCompleteDelay),
	}, logger)

	handler := fulfillment.NewHandler(fulfillment.HandlerDeps{Service: service}, config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	}
	subscriberLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return subscriber.Close()
		},
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(orderRepo, index, catalogSubscriber, publisherLifecycle, subscriberLifecycle),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func durationFromConfig(config *apt.Config, key string, def time.Duration) time.Duration {
	raw := config.GetStringOrDef(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

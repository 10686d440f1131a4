package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/adapter/auth"
	"github.com/example/food-order-service/internal/adapter/httpapi"
	"github.com/example/food-order-service/internal/adapter/idgen"
	"github.com/example/food-order-service/internal/adapter/memstore"
	"github.com/example/food-order-service/internal/adapter/mongostore"
	"github.com/example/food-order-service/internal/adapter/natsstan"
	"github.com/example/food-order-service/internal/adapter/pgstore"
	"github.com/example/food-order-service/internal/adapter/realtime"
	"github.com/example/food-order-service/internal/config"
	"github.com/example/food-order-service/internal/domain"
	"github.com/example/food-order-service/internal/usecase"
)

const feedRetryBase = time.Second

func serve(ctx context.Context, cfg config.Config, log logrus.FieldLogger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	log.WithField("driver", cfg.StoreDriver).Info("store opened")

	ids, err := idgen.NewSnowflake(cfg.SnowflakeNode)
	if err != nil {
		return err
	}
	key, err := cfg.JWTKey()
	if err != nil {
		return err
	}
	verifier := auth.NewVerifier(key, cfg.JWTAudience)
	registry := realtime.NewRegistry(log.WithField("component", "registry"))
	uc := buildUseCases(store, ids, log.WithField("component", "queue"))

	feed := &feedSupervisor{
		Opener:    store,
		OnChange:  usecase.QueueCountNotifier{Sender: registry}.OnQueueChange,
		Log:       log.WithField("component", "feed"),
		BaseDelay: feedRetryBase,
		MaxDelay:  cfg.FeedRetryMax,
	}
	go feed.Run(ctx)

	if cfg.NATSURL != "" {
		sub := &natsstan.Subscriber{
			ClusterID: cfg.STANClusterID,
			ClientID:  cfg.STANClientID,
			URL:       cfg.NATSURL,
			Subject:   cfg.STANSubject,
			Durable:   cfg.STANDurable,
			Log:       log.WithField("component", "intake"),
		}
		intake := usecase.ProcessIncomingOrder{Place: uc.PlaceOrder, Log: log.WithField("component", "intake")}
		if err := sub.Subscribe(ctx, intake.Execute); err != nil {
			// HTTP остаётся доступным и без брокера
			log.WithError(err).Error("order intake disabled")
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(uc, verifier, registry, log.WithField("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := feed.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("close queue feed")
	}
	registry.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("close store")
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (domain.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverPostgres:
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		return pgstore.New(ctx, cfg.DatabaseURL)
	case config.DriverMongo:
		return mongostore.New(ctx, cfg.MongoURI(), cfg.MongoDatabase)
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func buildUseCases(store domain.Store, ids domain.OrderIDGenerator, log logrus.FieldLogger) httpapi.UseCases {
	queue := usecase.VendorQueue{Queues: store, Orders: store, Log: log}
	menu := usecase.GetMenu{Vendors: store, Foods: store}
	return httpapi.UseCases{
		PlaceOrder: usecase.PlaceOrder{
			Vendors:   store,
			Consumers: store,
			Foods:     store,
			Orders:    store,
			Queue:     queue,
			IDs:       ids,
		},
		GetNextOrder:         usecase.GetNextOrder{Vendors: store, Queue: queue},
		GetAllOrders:         usecase.GetAllOrders{Vendors: store, Orders: store},
		CompleteCurrentOrder: usecase.CompleteCurrentOrder{Vendors: store, Queue: queue},

		CreateVendor:       usecase.CreateVendor{Vendors: store, Foods: store},
		GetVendor:          usecase.GetVendor{Vendors: store},
		GetVendorByName:    usecase.GetVendorByName{Vendors: store},
		UpdateVendorStatus: usecase.UpdateVendorStatus{Vendors: store},
		AddFoods:           usecase.AddFoods{Vendors: store, Foods: store},
		GetMenu:            menu,
		GetFood:            usecase.GetFood{Menu: menu},

		CreateAnonymousConsumer: usecase.CreateAnonymousConsumer{Consumers: store},
		CreateSignedConsumer:    usecase.CreateSignedConsumer{Consumers: store},
		GetConsumer:             usecase.GetConsumer{Consumers: store},
	}
}

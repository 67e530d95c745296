package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/availability"
	"github.com/iliyamo/lounge-reservation/internal/config"
	"github.com/iliyamo/lounge-reservation/internal/database"
	"github.com/iliyamo/lounge-reservation/internal/handler"
	"github.com/iliyamo/lounge-reservation/internal/middleware"
	"github.com/iliyamo/lounge-reservation/internal/outbox"
	"github.com/iliyamo/lounge-reservation/internal/queue"
	"github.com/iliyamo/lounge-reservation/internal/repository"
	"github.com/iliyamo/lounge-reservation/internal/reservation"
	"github.com/iliyamo/lounge-reservation/internal/router"
	queue_publisher "github.com/iliyamo/lounge-reservation/internal/service"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		log.WithField("level", level).Warn("unknown log level, using info")
	}
	log.SetLevel(lvl)
	return log
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := newLogger(cfg.LogLevel)

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Address()).Warn("redis unreachable, running without cache and rate limiting")
	} else {
		defer rdb.Close()
	}

	box := outbox.New(cfg.Outbox.Workers, cfg.Outbox.Buffer, cfg.Outbox.TaskTimeout, log.WithField("component", "outbox"))

	bookings := repository.NewBookingRepo(db)
	closures := repository.NewClosureRepo(db)
	memberships := repository.NewMembershipRepo(db)
	plans := repository.NewPlanRepo(db)
	users := repository.NewUserRepo(db)

	effects := reservation.Effects{
		Hours:   memberships,
		Promos:  repository.NewPromoRepo(db),
		Loyalty: users,
	}
	if cfg.RabbitURL != "" {
		effects.Notifier = queue_publisher.NewPublisher(cfg.RabbitURL, log.WithField("component", "publisher"))
	}
	if rdb != nil {
		effects.Cache = middleware.NewRedisInvalidator(rdb, cfg.Cache.Prefix)
	}

	quoter := reservation.NewQuoter(memberships, reservation.NewCachedPlans(plans.GetByType), log.WithField("component", "quoter"))
	svc := reservation.NewService(reservation.Deps{
		Store:    repository.NewTxStore(db),
		Bookings: bookings,
		Quoter:   quoter,
		Closures: closures,
		Outbox:   box,
		Effects:  effects,
		Log:      log.WithField("component", "reservation"),
		Location: cfg.Location,
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, router.Routes{
		JWTSecret:    cfg.JWTSecret,
		Ready:        db,
		Availability: handler.NewAvailabilityHandler(availability.NewChecker(bookings, closures), log),
		Bookings:     handler.NewBookingHandler(svc, quoter, users, log),
		RateLimit:    middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Cache:        middleware.NewRedisCache(cfg.Cache, rdb, log),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.BookingConsumer {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogPath: queue.DefaultLogPath, Log: log.WithField("component", "booking-consumer")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := box.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("outbox did not drain before shutdown")
	}
	log.Info("server stopped")
}

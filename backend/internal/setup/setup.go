package setup

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/vpportal/vpportal/backend/internal/handler"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/backend/internal/storage/mongo"
	"github.com/vpportal/vpportal/backend/internal/storage/pending"
	"github.com/vpportal/vpportal/backend/internal/storage/pg"
	"github.com/vpportal/vpportal/backend/internal/utils/email"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/jwt"
	"github.com/vpportal/vpportal/shared/logger"
	"github.com/vpportal/vpportal/shared/middleware"
	"github.com/vpportal/vpportal/shared/monitoring"
)

// Storage is what the API needs from a database backend.
type Storage interface {
	service.UserStorage
	service.RequestStorage
	handler.Pinger
	Cleanup() error
}

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        Storage
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Reporter       *monitoring.Reporter

	closers []func() error
}

// SetupDependencies initializes all dependencies required for the
// application. Background loops stop when ctx is done.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.Storage = storage
	deps.closers = append(deps.closers, storage.Cleanup)

	pendingStore, err := deps.newPendingStore(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	mailer, err := deps.newMailer(cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())
	deps.Reporter = monitoring.New(cfg.Private.SentryDSN, "")
	deps.AuthMiddleware = middleware.NewAuth(jwtService)

	auth := service.NewAuth(storage, pendingStore, mailer, jwtService, &cfg.Public)
	requests := service.NewRequests(storage)
	deps.Handler = handler.New(auth, requests, storage, deps.Reporter)

	return deps, nil
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Log.Error("failed to close dependency", "error", err)
		}
	}
	d.closers = nil
}

func newStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Public.Storage.Driver {
	case "postgres":
		storage, err := pg.New(ctx, cfg.Private.Pg)
		if err != nil {
			return nil, err
		}
		return storage, nil
	case "mongo":
		storage, err := mongo.New(ctx, cfg.Private.Mongo)
		if err != nil {
			return nil, err
		}
		return storage, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Public.Storage.Driver)
}

func (d *Dependencies) newPendingStore(ctx context.Context, cfg *config.Config) (service.PendingStore, error) {
	switch cfg.Public.Pending.Driver {
	case "redis":
		db, err := pending.NewRedisClient(ctx, cfg.Private.Redis)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		logger.Log.Info("pending registrations kept in redis", "addr", cfg.Private.Redis.Addr)
		return pending.NewRedis(db, cfg.Public.Pending.RetentionGrace), nil
	case "memory":
		store := pending.NewMemory(cfg.Public.Pending.RetentionGrace)
		store.StartBackgroundSweep(ctx, cfg.Public.Pending.SweepInterval)
		return store, nil
	}
	return nil, fmt.Errorf("unknown pending driver %q", cfg.Public.Pending.Driver)
}

func (d *Dependencies) newMailer(cfg *config.Config) (service.Email, error) {
	switch cfg.Public.Mail.Driver {
	case "smtp":
		return email.New(&cfg.Private.Email, cfg.Public.Mail.SenderName), nil
	case "log":
		logger.Log.Warn("emails are logged instead of sent")
		return email.Log{}, nil
	case "queue":
		conn, err := amqp.Dial(cfg.Private.AmqpURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to amqp: %w", err)
		}
		d.closers = append(d.closers, conn.Close)
		ch, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to open amqp channel: %w", err)
		}
		d.closers = append(d.closers, ch.Close)
		if err := email.DeclareQueue(ch, cfg.Public.Mail.Queue); err != nil {
			return nil, err
		}
		logger.Log.Info("emails are queued for the mailer", "queue", cfg.Public.Mail.Queue)
		return email.NewQueue(ch, cfg.Public.Mail.Queue), nil
	}
	return nil, fmt.Errorf("unknown mail driver %q", cfg.Public.Mail.Driver)
}

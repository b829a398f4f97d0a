package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/rs/zerolog"

	"github.com/emailauth/emailauth/internal/api"
	"github.com/emailauth/emailauth/internal/api/handler"
	"github.com/emailauth/emailauth/internal/core/service"
	redisdb "github.com/emailauth/emailauth/internal/infrastructure/db/redis"
	"github.com/emailauth/emailauth/internal/infrastructure/mail"
	"github.com/emailauth/emailauth/internal/infrastructure/queue"
	"github.com/emailauth/emailauth/internal/pkg/config"
	"github.com/emailauth/emailauth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	serve = app.Command("serve", "Run the HTTP API.").Default()
)

func initLogger(cfg *config.Config) zerolog.Logger {
	return logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "emailauth",
	})
}

func runServe() error {
	cfg := config.Load()
	log := initLogger(cfg)
	if cfg.SecretGenerated {
		log.Warn().Msg("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(context.Background()) }()
	log.Info().Str("driver", st.name).Msg("account store ready")

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	var throttle queue.Throttle
	if cfg.Mail.Throttle > 0 {
		throttle = redisdb.NewMailThrottle(rdb, cfg.Mail.Throttle)
	}

	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.Mail.DefaultFrom,
	})
	dispatcher := queue.NewMailDispatcher(cfg.Mail.Workers, mailer, throttle, logger.Component("mail"))
	// Workers outlive ctx. Close runs after the HTTP server has shut down and
	// delivers whatever was accepted before returning.
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	users := service.NewUserManager(st.users, st.groups, dispatcher, cfg.Mail.DefaultFrom, logger.Component("users"))
	auth := service.NewAuthService(st.users, users, cfg.JWTSecret, cfg.TokenTTL, logger.Component("auth"))

	e := api.NewRouter(api.Dependencies{
		Auth:      auth,
		Users:     users,
		JWTSecret: cfg.JWTSecret,
		Readiness: map[string]handler.PingFunc{
			st.name: st.ping,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Log: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		if command == serve.FullCommand() {
			kingpin.FatalIfError(runServe(), "serve")
			return true
		}
		return false
	})
}

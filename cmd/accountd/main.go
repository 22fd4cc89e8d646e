package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"accountd/internal/codes"
	"accountd/internal/config"
	"accountd/internal/mail"
	"accountd/internal/observability/logging"
	"accountd/internal/observability/metrics"
	"accountd/internal/service"
	impl "accountd/internal/service/impl"
	"accountd/internal/store"
	httpx "accountd/internal/transport/http"
	"accountd/pkg/db"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "accountd",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	metrics.MustRegister("accountd")

	gdb, err := db.OpenGorm(db.Config{
		DSN:    cfg.DatabaseURL,
		Driver: cfg.DatabaseDriver,
		LogSQL: cfg.LogSQL,
	})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}
	st.ConfigureVerifications(codes.NewGenerator(cfg.CodeLength, cfg.CodeAlphabet), cfg.CodeLifetime)

	pw := impl.NewPasswordServiceArgon2id()

	ts := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		SigningKey: []byte(cfg.SigningKey),
	}, st)

	mailer, err := buildMailer(cfg)
	if err != nil {
		logger.Error("mailer init", "error", err)
		os.Exit(1)
	}

	as := impl.NewAccountServiceImpl(st, pw, ts, mailer, cfg.EnforceCodeExpiry)

	mux := httpx.NewRouter(httpx.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		IssueLimit:  cfg.IssueLimit,
		IssueWindow: cfg.IssueWindow,
	}, as, ts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("account service listening", "addr", srv.Addr, "issuer", cfg.Issuer, "mail_driver", cfg.MailDriver)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func buildMailer(cfg config.Config) (service.Mailer, error) {
	switch cfg.MailDriver {
	case "smtp":
		renderer, err := mail.NewRenderer()
		if err != nil {
			return nil, err
		}
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		}, renderer), nil
	case "kafka":
		renderer, err := mail.NewRenderer()
		if err != nil {
			return nil, err
		}
		return mail.NewKafkaMailer(mail.KafkaConfig{
			Broker:   cfg.KafkaBroker,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUser,
			Password: cfg.KafkaPass,
		}, renderer), nil
	default:
		return mail.LogMailer{}, nil
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ticketdesk/internal/api"
	"ticketdesk/internal/app"
	"ticketdesk/internal/auth"
	"ticketdesk/internal/certs"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/utils"
)

const certWarnWindow = 30 * 24 * time.Hour

func main() {
	configPath := flag.String("config", "", "Config file (default ticketdesk.json)")
	addr := flag.String("addr", "", "Listen address (overrides consoleAddr)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if *addr != "" {
		cfg.ConsoleAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	logger, err := utils.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("open log")
	}
	defer logger.Close()

	deps, cleanup := app.Build(cfg, logger, notify.Log{Logger: logger.WithField("component", "notify")})
	defer cleanup()

	operators := auth.New()
	if cfg.ConsolePasswordHash != "" {
		if err := operators.Register(cfg.ConsoleUser, cfg.ConsolePasswordHash); err != nil {
			logger.WithError(err).Fatal("invalid console password hash")
		}
	} else {
		logger.Warn("console password not set, running without authentication")
	}

	srv := &http.Server{
		Addr:              cfg.ConsoleAddr,
		Handler:           api.NewRouter(api.NewServer(deps), operators),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.CertDir != "" {
		cm := certs.NewCertManager(cfg.CertDir)
		tlsCfg, err := cm.TLSConfig()
		if err != nil {
			logger.WithError(err).Fatal("load tls certificates")
		}
		srv.TLSConfig = tlsCfg
		expiring, err := cm.ExpiringWithin(certWarnWindow)
		if err != nil {
			logger.WithError(err).Warn("cannot inspect certificates")
		}
		for _, c := range expiring {
			entry := logger.WithFields(logrus.Fields{"subject": c.Subject.CommonName, "not_after": c.NotAfter})
			if cm.IsExpired(c) {
				entry.Error("certificate expired")
				continue
			}
			entry.Warn("certificate expiring soon")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "backend": cfg.BackendURL, "tls": srv.TLSConfig != nil}).Info("console listening")
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("console stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
	logger.Info("console stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rosterimport/internal/config"
	"rosterimport/internal/listener"
	"rosterimport/internal/logging"
	"rosterimport/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.Init("mail-listener", cfg.LogEnv)
	defer log.SafeSync()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infow("mail listener started", "provider", cfg.MailListenerProvider, "label", cfg.MailListenerLabel, "intervalSec", cfg.MailListenerIntervalSec)
	must(listener.NewService(db, cfg, log).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

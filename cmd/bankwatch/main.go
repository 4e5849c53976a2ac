package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tracyhatemice/bankwatch/internal/config"
	"github.com/tracyhatemice/bankwatch/internal/dedup"
	"github.com/tracyhatemice/bankwatch/internal/emit"
	"github.com/tracyhatemice/bankwatch/internal/extract"
	"github.com/tracyhatemice/bankwatch/internal/gauth"
	"github.com/tracyhatemice/bankwatch/internal/provider"
	"github.com/tracyhatemice/bankwatch/internal/watch"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	authorize := flag.Bool("authorize", false, "run the Gmail authorization flow and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *authorize {
		if err := runAuthorize(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token saved.")
		return
	}

	logger.Info("bankwatch starting", "watchers", len(cfg.Watchers))

	console := emit.NewConsole(os.Stdout)

	var wg sync.WaitGroup

	for _, wc := range cfg.Watchers {
		prov, err := newProvider(ctx, wc, logger)
		if err != nil {
			logger.Error("failed to create provider", "watcher", wc.Name, "error", err)
			continue
		}

		seen, err := newSeenStore(wc)
		if err != nil {
			logger.Error("failed to create seen store", "watcher", wc.Name, "error", err)
			continue
		}
		logger.Info("loaded seen state", "watcher", wc.Name, "seen_count", seen.Count())

		extractor, err := extract.New(extract.Pattern{
			CurrencyMarker:  wc.Pattern.CurrencyMarker,
			CreditPhrase:    wc.Pattern.CreditPhrase,
			ReferencePhrase: wc.Pattern.ReferencePhrase,
		}, logger)
		if err != nil {
			logger.Error("failed to compile pattern", "watcher", wc.Name, "error", err)
			continue
		}

		w := watch.New(wc, prov, seen, extractor, console, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer prov.Close()
			if err := w.Run(ctx); err != nil {
				// Fatal watcher failure takes the whole process down.
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down, waiting for watchers to finish...")

	// Force exit on second signal.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Warn("forced shutdown")
		os.Exit(1)
	}()

	wg.Wait()
	logger.Info("bankwatch stopped")
}

func newProvider(ctx context.Context, wc config.Watch, logger *slog.Logger) (provider.Provider, error) {
	switch wc.Provider {
	case "gmail":
		srv, err := gauth.Service(ctx, wc.Gmail.CredentialsFile, wc.Gmail.TokenFile)
		if err != nil {
			return nil, err
		}
		return provider.NewGmail(srv, logger), nil
	case "imap":
		return provider.NewIMAP(
			wc.IMAP.Host, wc.IMAP.Port,
			wc.IMAP.Username, wc.IMAP.Password,
			wc.IMAP.UseTLS, wc.IMAP.GetFolder(), logger,
		), nil
	case "pop3":
		return provider.NewPOP3(
			wc.POP3.Host, wc.POP3.Port,
			wc.POP3.Username, wc.POP3.Password,
			wc.POP3.UseTLS, logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", wc.Provider)
	}
}

func newSeenStore(wc config.Watch) (dedup.Store, error) {
	if wc.SeenFile == "" {
		return dedup.NewMemory(), nil
	}
	return dedup.NewFile(wc.SeenFile)
}

// runAuthorize runs the consent flow for every gmail watcher in the config.
func runAuthorize(ctx context.Context, cfg *config.Config) error {
	ran := false
	for _, wc := range cfg.Watchers {
		if wc.Provider != "gmail" {
			continue
		}
		ran = true
		if err := gauth.Authorize(ctx, wc.Gmail.CredentialsFile, wc.Gmail.TokenFile); err != nil {
			return fmt.Errorf("authorize %s: %w", wc.Name, err)
		}
	}
	if !ran {
		return fmt.Errorf("no gmail watchers in config")
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

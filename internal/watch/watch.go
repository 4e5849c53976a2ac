// Package watch drives the polling loop: query the mail provider, decode and
// extract new messages, emit transactions, track what has been processed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tracyhatemice/bankwatch/internal/config"
	"github.com/tracyhatemice/bankwatch/internal/decode"
	"github.com/tracyhatemice/bankwatch/internal/dedup"
	"github.com/tracyhatemice/bankwatch/internal/emit"
	"github.com/tracyhatemice/bankwatch/internal/extract"
	"github.com/tracyhatemice/bankwatch/internal/provider"
)

// Watcher polls one mailbox for bank notification emails.
type Watcher struct {
	cfg       config.Watch
	provider  provider.Provider
	seen      dedup.Store
	extractor *extract.Extractor
	emitter   emit.Emitter
	logger    *slog.Logger
}

// New creates a Watcher for the given mailbox.
func New(
	cfg config.Watch,
	prov provider.Provider,
	seen dedup.Store,
	extractor *extract.Extractor,
	emitter emit.Emitter,
	logger *slog.Logger,
) *Watcher {
	return &Watcher{
		cfg:       cfg,
		provider:  prov,
		seen:      seen,
		extractor: extractor,
		emitter:   emitter,
		logger:    logger,
	}
}

// Run polls on the configured interval until ctx is cancelled. It returns
// nil on cancellation and an error only when a cycle fails fatally
// (rejected credentials); transient cycle failures are logged and retried
// on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("starting watcher",
		"watcher", w.cfg.Name,
		"provider", w.cfg.Provider,
		"sender", w.cfg.GetSender(),
		"interval", w.cfg.PollInterval(),
	)

	// Run immediately on start, then on interval.
	if err := w.tick(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped", "watcher", w.cfg.Name)
			return nil
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				return err
			}
		}
	}
}

// tick runs one cycle and applies the error policy: fatal errors are
// returned, transient ones only logged.
func (w *Watcher) tick(ctx context.Context) error {
	found, err := w.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, provider.ErrAuth) {
			w.logger.Error("credentials rejected, stopping", "watcher", w.cfg.Name, "error", err)
			return err
		}
		w.logger.Warn("cycle failed, will retry", "watcher", w.cfg.Name, "error", err)
		return nil
	}
	if !found {
		w.emitter.Heartbeat()
	}
	return nil
}

// RunCycle performs one poll: search for candidates, process each unseen
// message, mark everything processed as seen. It reports whether any new
// transaction was found.
//
// A search or fetch failure aborts the cycle and is returned to the caller;
// unseen messages are picked up again next cycle. A message whose body
// cannot be decoded or matched is not an error: it is skipped and still
// marked seen, so one malformed message never blocks the rest.
func (w *Watcher) RunCycle(ctx context.Context) (bool, error) {
	filter := provider.Filter{
		Sender: w.cfg.GetSender(),
		Phrase: w.cfg.GetPhrase(),
	}
	ids, err := w.provider.Search(ctx, filter, w.cfg.GetMaxResults())
	if err != nil {
		return false, fmt.Errorf("search: %w", err)
	}

	found := false
	for _, id := range ids {
		if w.seen.Seen(id) {
			continue
		}

		payload, err := w.provider.Fetch(ctx, id)
		if err != nil {
			return found, fmt.Errorf("fetch %s: %w", id, err)
		}

		text := decode.Body(payload)
		if tx, ok := w.extractor.Extract(text); ok {
			w.emitter.Transaction(tx)
			w.logger.Info("transaction found",
				"watcher", w.cfg.Name,
				"msg_id", id,
				"amount", tx.Amount,
				"utr", tx.Reference,
			)
			found = true
		} else {
			w.logger.Debug("no transaction in message", "watcher", w.cfg.Name, "msg_id", id)
		}

		// Marked whether or not extraction succeeded, so each message is
		// processed at most once per store lifetime.
		if err := w.seen.MarkSeen(id); err != nil {
			w.logger.Error("mark seen failed", "watcher", w.cfg.Name, "msg_id", id, "error", err)
		}
	}

	return found, nil
}

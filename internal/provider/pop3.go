package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	pop3client "github.com/knadh/go-pop3"
)

// POP3Provider queries a mailbox over POP3/POP3S. POP3 has no server-side
// search, so the filter is applied client-side over the retrieved messages.
type POP3Provider struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	logger   *slog.Logger

	cache map[string]*Payload
}

// NewPOP3 creates a new POP3 provider.
func NewPOP3(host string, port int, username, password string, useTLS bool, logger *slog.Logger) *POP3Provider {
	return &POP3Provider{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		logger:   logger,
		cache:    make(map[string]*Payload),
	}
}

func (p *POP3Provider) Search(ctx context.Context, f Filter, max int) ([]string, error) {
	addr := net.JoinHostPort(p.host, fmt.Sprintf("%d", p.port))

	opt := pop3client.Opt{
		Host:       p.host,
		Port:       p.port,
		TLSEnabled: p.useTLS,
	}

	client := pop3client.New(opt)
	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Auth(p.username, p.password); err != nil {
		return nil, errors.Join(ErrAuth, fmt.Errorf("pop3 auth %s: %w", p.username, err))
	}

	msgs, err := conn.List(0)
	if err != nil {
		return nil, fmt.Errorf("pop3 list: %w", err)
	}

	p.logger.Debug("fetched message list", "count", len(msgs))

	cache := make(map[string]*Payload)
	var ids []string

	// Walk newest first so the cap keeps the most recent matches.
	for i := len(msgs) - 1; i >= 0 && len(ids) < max; i-- {
		msg := msgs[i]

		rawBuf, err := conn.RetrRaw(msg.ID)
		if err != nil {
			p.logger.Warn("pop3 retrieve failed", "msg_id", msg.ID, "error", err)
			continue
		}
		raw := rawBuf.Bytes()

		if !matchesFilter(raw, f) {
			continue
		}

		msgID := rawHeader(raw, "Message-ID")
		if msgID == "" {
			if msg.UID != "" {
				msgID = fmt.Sprintf("pop3-uid-%s-%s", msg.UID, p.username)
			} else {
				msgID = fmt.Sprintf("pop3-%d-%s", msg.ID, p.username)
			}
		}

		cache[msgID] = payloadFromRaw(raw)
		ids = append(ids, msgID)
	}

	p.cache = cache
	p.logger.Debug("pop3 search done", "count", len(ids))
	return ids, nil
}

func (p *POP3Provider) Fetch(ctx context.Context, id string) (*Payload, error) {
	payload, ok := p.cache[id]
	if !ok {
		return nil, fmt.Errorf("pop3 fetch %s: not in current search results", id)
	}
	return payload, nil
}

func (p *POP3Provider) Close() error {
	return nil
}

// matchesFilter checks the From header against the sender and the whole raw
// message for the phrase.
func matchesFilter(raw []byte, f Filter) bool {
	from := rawHeader(raw, "From")
	if !strings.Contains(strings.ToLower(from), strings.ToLower(f.Sender)) {
		return false
	}
	if f.Phrase == "" {
		return true
	}
	return strings.Contains(strings.ToLower(string(raw)), strings.ToLower(f.Phrase))
}

package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPProvider queries a mailbox over IMAP/IMAPS. Each Search dials a fresh
// connection, runs a server-side search and caches the matching bodies so
// Fetch needs no further round trips within the cycle.
type IMAPProvider struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	folder   string
	logger   *slog.Logger

	cache map[string]*Payload
}

// NewIMAP creates a new IMAP provider.
func NewIMAP(host string, port int, username, password string, useTLS bool, folder string, logger *slog.Logger) *IMAPProvider {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPProvider{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		folder:   folder,
		logger:   logger,
		cache:    make(map[string]*Payload),
	}
}

func (p *IMAPProvider) Search(ctx context.Context, f Filter, max int) ([]string, error) {
	addr := net.JoinHostPort(p.host, fmt.Sprintf("%d", p.port))

	var client *imapclient.Client
	var err error

	if p.useTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: p.host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(p.username, p.password).Wait(); err != nil {
		return nil, errors.Join(ErrAuth, fmt.Errorf("imap login %s: %w", p.username, err))
	}
	defer client.Logout()

	if _, err := client.Select(p.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", p.folder, err)
	}

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: f.Sender},
		},
		Body: []string{f.Phrase},
	}
	searchData, err := client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if len(seqNums) == 0 {
		p.logger.Debug("no matching messages", "folder", p.folder)
		p.cache = make(map[string]*Payload)
		return nil, nil
	}

	// Sequence numbers come back oldest first; keep only the newest max
	// and report them newest first.
	if len(seqNums) > max {
		seqNums = seqNums[len(seqNums)-max:]
	}

	seqSet := imap.SeqSetNum(seqNums...)
	fetchOptions := &imap.FetchOptions{
		Envelope: true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: true},
		},
	}

	buffers, err := client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}

	cache := make(map[string]*Payload, len(buffers))
	ids := make([]string, 0, len(buffers))
	for i := len(buffers) - 1; i >= 0; i-- {
		buf := buffers[i]

		var msgID string
		if buf.Envelope != nil {
			msgID = buf.Envelope.MessageID
		}
		if msgID == "" {
			msgID = fmt.Sprintf("imap-%d-%s", buf.SeqNum, p.username)
		}

		content := buf.FindBodySection(bodySection)
		if len(content) == 0 {
			p.logger.Warn("empty body, skipping", "msg_id", msgID)
			continue
		}

		cache[msgID] = payloadFromRaw(content)
		ids = append(ids, msgID)
	}

	p.cache = cache
	p.logger.Debug("imap search done", "count", len(ids))
	return ids, nil
}

func (p *IMAPProvider) Fetch(ctx context.Context, id string) (*Payload, error) {
	payload, ok := p.cache[id]
	if !ok {
		return nil, fmt.Errorf("imap fetch %s: not in current search results", id)
	}
	return payload, nil
}

func (p *IMAPProvider) Close() error {
	return nil
}

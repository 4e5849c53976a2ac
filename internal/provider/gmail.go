package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// GmailProvider queries the Gmail API for matching messages.
type GmailProvider struct {
	srv    *gmail.Service
	logger *slog.Logger
}

// NewGmail wraps an authenticated Gmail service.
func NewGmail(srv *gmail.Service, logger *slog.Logger) *GmailProvider {
	return &GmailProvider{srv: srv, logger: logger}
}

func (p *GmailProvider) Search(ctx context.Context, f Filter, max int) ([]string, error) {
	q := fmt.Sprintf("from:%s %q", f.Sender, f.Phrase)
	res, err := p.srv.Users.Messages.List("me").
		Q(q).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("gmail list: %w", err))
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	p.logger.Debug("gmail search done", "query", q, "count", len(ids))
	return ids, nil
}

func (p *GmailProvider) Fetch(ctx context.Context, id string) (*Payload, error) {
	msg, err := p.srv.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("gmail get %s: %w", id, err))
	}
	return payloadFromGmail(msg.Payload), nil
}

func (p *GmailProvider) Close() error {
	return nil
}

// payloadFromGmail maps the API part tree onto Payload, one level deep.
func payloadFromGmail(gp *gmail.MessagePart) *Payload {
	if gp == nil {
		return &Payload{}
	}
	out := &Payload{MimeType: gp.MimeType}
	if gp.Body != nil {
		out.Data = gp.Body.Data
	}
	for _, part := range gp.Parts {
		sub := Part{MimeType: part.MimeType}
		if part.Body != nil {
			sub.Data = part.Body.Data
		}
		out.Parts = append(out.Parts, sub)
	}
	return out
}

// classify wraps credential rejections with ErrAuth so the poll loop can
// tell fatal failures from transient ones.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return errors.Join(ErrAuth, err)
	}
	return err
}

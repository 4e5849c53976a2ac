package provider

import (
	"context"
	"errors"
)

// ErrAuth marks credential-rejection failures (revoked token, bad password).
// Errors carrying it are fatal: retrying on the next cycle cannot succeed.
var ErrAuth = errors.New("authentication rejected")

// Filter selects candidate messages: a sender address plus a phrase that
// must appear in the message.
type Filter struct {
	Sender string
	Phrase string
}

// Part is one MIME part of a message. Data is the body payload in web-safe
// base64, the form the Gmail API delivers it in; the other providers encode
// to the same form so callers see a single shape.
type Part struct {
	MimeType string
	Data     string
}

// Payload is the structural representation of a message body: either a
// single part (MimeType/Data set, Parts empty) or an ordered list of parts.
type Payload struct {
	MimeType string
	Data     string
	Parts    []Part
}

// Provider is a mail source that can be queried for candidate messages.
type Provider interface {
	// Search returns the IDs of up to max messages matching f, in the
	// provider's own recency/relevance order.
	Search(ctx context.Context, f Filter, max int) ([]string, error)

	// Fetch returns the body payload of a message returned by the most
	// recent Search.
	Fetch(ctx context.Context, id string) (*Payload, error)

	// Close releases any resources held by the provider.
	Close() error
}

package provider

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/emersion/go-message/mail"
)

// payloadFromRaw converts a raw RFC 5322 message into a Payload. Each inline
// part's decoded body is re-encoded as web-safe base64 so IMAP and POP3
// messages look the same to the decoder as Gmail API ones. Attachments are
// skipped. A message that cannot be parsed at all is treated as a single
// text/plain body.
func payloadFromRaw(raw []byte) *Payload {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return &Payload{
			MimeType: "text/plain",
			Data:     base64.RawURLEncoding.EncodeToString(raw),
		}
	}
	defer reader.Close()

	var parts []Part
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ctype, _, err := h.ContentType()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		parts = append(parts, Part{
			MimeType: ctype,
			Data:     base64.RawURLEncoding.EncodeToString(body),
		})
	}

	if len(parts) == 1 {
		return &Payload{MimeType: parts[0].MimeType, Data: parts[0].Data}
	}
	return &Payload{MimeType: "multipart/alternative", Parts: parts}
}

// rawHeader parses a single header field from raw message bytes, returning
// "" when the message cannot be parsed.
func rawHeader(raw []byte, key string) string {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer reader.Close()
	return reader.Header.Get(key)
}

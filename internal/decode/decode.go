// Package decode turns a message body payload into normalized plain text.
package decode

import (
	"encoding/base64"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tracyhatemice/bankwatch/internal/provider"
)

var stripPolicy = bluemonday.StrictPolicy()

// Body extracts readable text from a payload. Multipart messages yield the
// first text/plain part, falling back to the first text/html part with tags
// stripped; single-part messages follow the same rule. Parts with no body
// data or another MIME type are skipped. Malformed encodings never produce
// an error, only degraded text. The result is whitespace-trimmed and may be
// empty.
func Body(p *provider.Payload) string {
	if p == nil {
		return ""
	}

	if len(p.Parts) > 0 {
		if text, ok := firstOfType(p.Parts, "text/plain"); ok {
			return strings.TrimSpace(text)
		}
		if text, ok := firstOfType(p.Parts, "text/html"); ok {
			return strings.TrimSpace(stripHTML(text))
		}
		return ""
	}

	if p.Data == "" {
		return ""
	}
	switch p.MimeType {
	case "text/plain":
		return strings.TrimSpace(decodeData(p.Data))
	case "text/html":
		return strings.TrimSpace(stripHTML(decodeData(p.Data)))
	}
	return ""
}

func firstOfType(parts []provider.Part, mimeType string) (string, bool) {
	for _, part := range parts {
		if part.MimeType != mimeType || part.Data == "" {
			continue
		}
		return decodeData(part.Data), true
	}
	return "", false
}

// decodeData decodes web-safe base64, tolerating both padded and unpadded
// forms. When the input is malformed the longest decodable prefix is kept,
// and invalid UTF-8 bytes are dropped from the result.
func decodeData(data string) string {
	var decoded []byte
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		decoded = b
	} else if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		decoded = b
	} else {
		trimmed := strings.TrimRight(data, "=")
		for len(trimmed) > 0 {
			b, err := base64.RawURLEncoding.DecodeString(trimmed)
			if err == nil {
				decoded = b
				break
			}
			trimmed = trimmed[:len(trimmed)-1]
		}
	}
	return strings.ToValidUTF8(string(decoded), "")
}

// stripHTML reduces an HTML document to its text content.
func stripHTML(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

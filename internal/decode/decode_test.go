package decode

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracyhatemice/bankwatch/internal/provider"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestBodyPrefersPlainText(t *testing.T) {
	p := &provider.Payload{
		MimeType: "multipart/alternative",
		Parts: []provider.Part{
			{MimeType: "text/html", Data: b64("<p>html version</p>")},
			{MimeType: "text/plain", Data: b64("plain version\n")},
		},
	}
	assert.Equal(t, "plain version", Body(p))
}

func TestBodyFallsBackToHTML(t *testing.T) {
	p := &provider.Payload{
		MimeType: "multipart/alternative",
		Parts: []provider.Part{
			{MimeType: "image/png", Data: b64("not text")},
			{MimeType: "text/html", Data: b64("<b>Rs.1,234.56</b> credited &amp; the reference number is 987654321")},
		},
	}
	got := Body(p)
	assert.Contains(t, got, "Rs.1,234.56")
	assert.Contains(t, got, "reference number is 987654321")
	assert.Contains(t, got, "&")
	assert.NotContains(t, got, "<b>")
}

func TestBodySkipsPartsWithoutData(t *testing.T) {
	p := &provider.Payload{
		Parts: []provider.Part{
			{MimeType: "text/plain"},
			{MimeType: "text/plain", Data: b64("second part wins")},
		},
	}
	assert.Equal(t, "second part wins", Body(p))
}

func TestBodySinglePart(t *testing.T) {
	plain := &provider.Payload{MimeType: "text/plain", Data: b64("  hello  ")}
	assert.Equal(t, "hello", Body(plain))

	html := &provider.Payload{MimeType: "text/html", Data: b64("<div>hello</div>")}
	assert.Equal(t, "hello", Body(html))

	other := &provider.Payload{MimeType: "application/pdf", Data: b64("%PDF")}
	assert.Equal(t, "", Body(other))
}

func TestBodyNoUsableContent(t *testing.T) {
	assert.Equal(t, "", Body(nil))
	assert.Equal(t, "", Body(&provider.Payload{}))
	assert.Equal(t, "", Body(&provider.Payload{
		Parts: []provider.Part{{MimeType: "image/jpeg", Data: b64("x")}},
	}))
}

func TestBodyMalformedBase64NeverFails(t *testing.T) {
	// Valid prefix with trailing garbage: the prefix is salvaged.
	p := &provider.Payload{MimeType: "text/plain", Data: b64("partial text") + "!!!*"}
	assert.Contains(t, Body(p), "partial")

	// Completely undecodable input degrades to empty text.
	p = &provider.Payload{MimeType: "text/plain", Data: "!!!!"}
	assert.Equal(t, "", Body(p))
}

func TestBodyDropsInvalidUTF8(t *testing.T) {
	raw := append([]byte("credited"), 0xff, 0xfe)
	p := &provider.Payload{
		MimeType: "text/plain",
		Data:     base64.RawURLEncoding.EncodeToString(raw),
	}
	assert.Equal(t, "credited", Body(p))
}

func TestBodyPaddedBase64(t *testing.T) {
	p := &provider.Payload{
		MimeType: "text/plain",
		Data:     base64.URLEncoding.EncodeToString([]byte("padded body")),
	}
	assert.Equal(t, "padded body", Body(p))
}

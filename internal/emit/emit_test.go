package emit

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tracyhatemice/bankwatch/internal/extract"
)

func TestConsoleTransaction(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Transaction(extract.Transaction{
		Amount:    decimal.RequireFromString("1234.56"),
		Reference: "123456789012",
	})

	out := buf.String()
	assert.Contains(t, out, "New transaction found:")
	assert.Contains(t, out, "1234.56")
	assert.Contains(t, out, `"123456789012"`)
}

func TestConsoleHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Heartbeat()
	c.Heartbeat()

	// Heartbeats stay on one line and look nothing like a transaction.
	assert.Equal(t, "..", buf.String())
}

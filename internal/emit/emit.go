// Package emit writes discovered transactions and liveness heartbeats to an
// output stream.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tracyhatemice/bankwatch/internal/extract"
)

// Emitter receives poll cycle results.
type Emitter interface {
	// Transaction reports a newly discovered transaction.
	Transaction(tx extract.Transaction)

	// Heartbeat signals a completed cycle that found nothing new.
	Heartbeat()
}

// Console writes human-readable output to w. Safe for use by multiple
// watchers sharing one stream.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console emitter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Transaction(tx extract.Transaction) {
	b, err := json.MarshalIndent(tx, "", "    ")
	if err != nil {
		// Transaction's MarshalJSON cannot fail; keep the record anyway.
		b = fmt.Appendf(nil, `{"amount":%s,"utr":%q}`, tx.Amount.StringFixed(2), tx.Reference)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\nNew transaction found:\n%s\n", b)
}

func (c *Console) Heartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, ".")
}

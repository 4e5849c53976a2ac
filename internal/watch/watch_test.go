package watch

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracyhatemice/bankwatch/internal/config"
	"github.com/tracyhatemice/bankwatch/internal/dedup"
	"github.com/tracyhatemice/bankwatch/internal/extract"
	"github.com/tracyhatemice/bankwatch/internal/provider"
)

type fakeProvider struct {
	ids       []string
	payloads  map[string]*provider.Payload
	searchErr error
	fetchErr  map[string]error

	searches int
	fetches  []string
}

func (f *fakeProvider) Search(ctx context.Context, _ provider.Filter, max int) ([]string, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.ids) > max {
		return f.ids[:max], nil
	}
	return f.ids, nil
}

func (f *fakeProvider) Fetch(ctx context.Context, id string) (*provider.Payload, error) {
	f.fetches = append(f.fetches, id)
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	return f.payloads[id], nil
}

func (f *fakeProvider) Close() error { return nil }

type fakeEmitter struct {
	transactions []extract.Transaction
	heartbeats   int
}

func (f *fakeEmitter) Transaction(tx extract.Transaction) { f.transactions = append(f.transactions, tx) }
func (f *fakeEmitter) Heartbeat()                         { f.heartbeats++ }

func creditPayload(amount, ref string) *provider.Payload {
	text := "Rs." + amount + " is successfully credited to your account, the reference number is " + ref
	return &provider.Payload{
		MimeType: "text/plain",
		Data:     base64.RawURLEncoding.EncodeToString([]byte(text)),
	}
}

func otpPayload() *provider.Payload {
	return &provider.Payload{
		MimeType: "text/plain",
		Data:     base64.RawURLEncoding.EncodeToString([]byte("Your OTP is 482913")),
	}
}

func newTestWatcher(t *testing.T, prov provider.Provider, em *fakeEmitter) (*Watcher, dedup.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	extractor, err := extract.New(extract.Pattern{}, logger)
	require.NoError(t, err)
	seen := dedup.NewMemory()
	w := New(config.Watch{Name: "test", Provider: "gmail"}, prov, seen, extractor, em, logger)
	return w, seen
}

func TestRunCycleEmitsNewTransactions(t *testing.T) {
	prov := &fakeProvider{
		ids: []string{"m1", "m2"},
		payloads: map[string]*provider.Payload{
			"m1": creditPayload("1234.56", "123456789012"),
			"m2": otpPayload(),
		},
	}
	em := &fakeEmitter{}
	w, seen := newTestWatcher(t, prov, em)

	found, err := w.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, em.transactions, 1)
	assert.Equal(t, "123456789012", em.transactions[0].Reference)

	// Both messages are marked, matched or not.
	assert.True(t, seen.Seen("m1"))
	assert.True(t, seen.Seen("m2"))
}

func TestRunCycleIdempotent(t *testing.T) {
	prov := &fakeProvider{
		ids: []string{"m1"},
		payloads: map[string]*provider.Payload{
			"m1": creditPayload("10.00", "42"),
		},
	}
	em := &fakeEmitter{}
	w, _ := newTestWatcher(t, prov, em)

	found, err := w.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, found)

	// Second cycle with the same id still in the result set: no re-fetch,
	// no re-emission.
	found, err = w.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, em.transactions, 1)
	assert.Equal(t, []string{"m1"}, prov.fetches)
}

func TestRunCycleIsolatesMalformedMessages(t *testing.T) {
	prov := &fakeProvider{
		ids: []string{"bad", "good"},
		payloads: map[string]*provider.Payload{
			"bad":  {MimeType: "text/plain", Data: "!!!!not-base64"},
			"good": creditPayload("55.50", "900"),
		},
	}
	em := &fakeEmitter{}
	w, seen := newTestWatcher(t, prov, em)

	found, err := w.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, em.transactions, 1)
	assert.Equal(t, "900", em.transactions[0].Reference)
	assert.True(t, seen.Seen("bad"))
}

func TestRunCycleSurfacesSearchError(t *testing.T) {
	prov := &fakeProvider{searchErr: errors.New("connection reset")}
	em := &fakeEmitter{}
	w, _ := newTestWatcher(t, prov, em)

	_, err := w.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, em.transactions)
}

func TestRunCycleAbortsOnFetchError(t *testing.T) {
	prov := &fakeProvider{
		ids: []string{"m1", "m2"},
		payloads: map[string]*provider.Payload{
			"m2": creditPayload("1.00", "7"),
		},
		fetchErr: map[string]error{"m1": errors.New("timeout")},
	}
	em := &fakeEmitter{}
	w, seen := newTestWatcher(t, prov, em)

	_, err := w.RunCycle(context.Background())
	require.Error(t, err)

	// The failed message is not marked, so it is retried next cycle.
	assert.False(t, seen.Seen("m1"))
	assert.False(t, seen.Seen("m2"))

	prov.fetchErr = nil
	found, err := w.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, seen.Seen("m1"))
	assert.True(t, seen.Seen("m2"))
}

func TestRunRetriesTransientErrors(t *testing.T) {
	prov := &fakeProvider{searchErr: errors.New("network down")}
	em := &fakeEmitter{}
	w, _ := newTestWatcher(t, prov, em)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A transient error on the immediate first cycle must not end the loop;
	// the already-cancelled context then stops it cleanly.
	err := w.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, prov.searches)
}

func TestRunStopsOnAuthError(t *testing.T) {
	prov := &fakeProvider{
		searchErr: errors.Join(provider.ErrAuth, errors.New("token revoked")),
	}
	em := &fakeEmitter{}
	w, _ := newTestWatcher(t, prov, em)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrAuth)
	assert.Equal(t, 1, prov.searches)
}

func TestRunHeartbeatsWhenIdle(t *testing.T) {
	prov := &fakeProvider{ids: []string{}}
	em := &fakeEmitter{}
	w, _ := newTestWatcher(t, prov, em)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := w.Run(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, em.heartbeats, 1)
	assert.Empty(t, em.transactions)
}

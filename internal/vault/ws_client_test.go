package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// startWSNode is closed by the caller with defer so it shuts down before goleak runs.
func startWSNode(node *fakeNode) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(node.serveWS))
}

func TestWSClient_RoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := startWSNode(newFakeNode())
	defer server.Close()
	ctx := context.Background()

	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)
	defer client.Close()

	doc := testDocument("doc-1", "did:key:zA", domain.SchemaInsulin)
	require.NoError(t, client.Put(ctx, doc))
	assert.ErrorIs(t, client.Put(ctx, doc), storage.ErrDuplicateKey)

	got, err := client.Get(ctx, "collection-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "did:key:zA", got.SubjectID)

	_, err = client.Get(ctx, "collection-1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	n, err := client.Count(ctx, "collection-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWSClient_ConcurrentCalls(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := startWSNode(newFakeNode())
	defer server.Close()
	ctx := context.Background()

	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)
	defer client.Close()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		i := i
		go func() {
			doc := testDocument(string(rune('a'+i)), "did:key:zA", domain.SchemaCycle)
			errs <- client.Put(ctx, doc)
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
	}

	docs, err := client.ListBySubject(ctx, "collection-1", "did:key:zA")
	require.NoError(t, err)
	assert.Len(t, docs, 20)
}

func TestWSClient_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := startWSNode(newFakeNode())
	defer server.Close()
	ctx := context.Background()

	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)

	assert.False(t, client.closed.Load())
	assert.NoError(t, client.Close())
	assert.True(t, client.closed.Load())

	// Double close should be safe
	assert.NoError(t, client.Close())

	_, err = client.Count(ctx, "collection-1")
	assert.Error(t, err, "calls after close must fail")
}

func TestWSClient_ServerDropFailsPending(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Server reads one request and hangs up without answering.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Count(ctx, "collection-1")
	assert.ErrorIs(t, err, ErrConnectionLost)

	_, err = client.Count(ctx, "collection-1")
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestWSClient_CallTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Server never answers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.CallTimeout = 50 * time.Millisecond

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), &cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Count(ctx, "collection-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	client.pendingMu.Lock()
	assert.Empty(t, client.pending)
	client.pendingMu.Unlock()
}

func TestWSClient_CloseDuringCall(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Server reads requests but never answers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Count(ctx, "collection-1")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		client.pendingMu.Lock()
		defer client.pendingMu.Unlock()
		return len(client.pending) == 1
	}, time.Second, 5*time.Millisecond)

	_ = client.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client closed")
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after Close")
	}

	client.pendingMu.Lock()
	assert.Empty(t, client.pending)
	client.pendingMu.Unlock()
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := startWSNode(newFakeNode())
	defer server.Close()

	config := &WSClientConfig{
		PingInterval: 5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		CallTimeout:  time.Second,
	}

	client, err := NewWSClient(context.Background(), wsURL(server), config, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 5*time.Second, client.config.PingInterval)
	assert.Equal(t, wsURL(server), client.Endpoint())
}

func TestWSClient_DialFailure(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil, nil)
	assert.Error(t, err)
}

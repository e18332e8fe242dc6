package vault

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
	"synth-cohort/internal/storage/memory"
)

// fakeNode is an in-process vault node backed by the memory store.
type fakeNode struct {
	store *memory.DocumentStore
	calls atomic.Int64

	// failFirst makes the first N HTTP requests answer 503.
	failFirst atomic.Int64
	// token, when set, is required as a bearer credential.
	token string
}

func newFakeNode() *fakeNode {
	return &fakeNode{store: memory.NewDocumentStore()}
}

type serverRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (f *fakeNode) dispatch(req serverRequest) rpcResponse {
	f.calls.Add(1)
	ctx := context.Background()
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	fail := func(err error) rpcResponse {
		code := -32000
		switch {
		case errors.Is(err, storage.ErrNotFound):
			code = CodeNotFound
		case errors.Is(err, storage.ErrDuplicateKey):
			code = CodeConflict
		case errors.Is(err, storage.ErrInvalidInput):
			code = CodeInvalidParams
		}
		resp.Error = &rpcError{Code: code, Message: err.Error()}
		return resp
	}
	ok := func(v interface{}) rpcResponse {
		resp.Result, _ = json.Marshal(v)
		return resp
	}
	str := func(i int) string {
		var s string
		if i < len(req.Params) {
			_ = json.Unmarshal(req.Params[i], &s)
		}
		return s
	}

	switch req.Method {
	case MethodPutDocument:
		var w wireDocument
		if len(req.Params) < 2 || json.Unmarshal(req.Params[1], &w) != nil {
			return fail(storage.ErrInvalidInput)
		}
		if err := f.store.Put(ctx, fromWire(str(0), w)); err != nil {
			return fail(err)
		}
		return ok(map[string]bool{"created": true})
	case MethodGetDocument:
		doc, err := f.store.Get(ctx, str(0), str(1))
		if err != nil {
			return fail(err)
		}
		return ok(toWire(doc))
	case MethodListDocuments:
		var filter map[string]string
		if len(req.Params) > 1 {
			_ = json.Unmarshal(req.Params[1], &filter)
		}
		docs, err := f.store.ListBySubject(ctx, str(0), filter["owner"])
		if err != nil {
			return fail(err)
		}
		// Reverse so the client has to restore ordering itself.
		ws := make([]wireDocument, len(docs))
		for i, d := range docs {
			ws[len(docs)-1-i] = toWire(d)
		}
		return ok(ws)
	case MethodCount:
		n, err := f.store.Count(ctx, str(0))
		if err != nil {
			return fail(err)
		}
		return ok(n)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
		return resp
	}
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.failFirst.Load() > 0 {
		f.failFirst.Add(-1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.dispatch(req))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS answers each request on the socket until the client goes away.
func (f *fakeNode) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req serverRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		if err := conn.WriteJSON(f.dispatch(req)); err != nil {
			return
		}
	}
}

func startHTTPNode(t *testing.T, node *fakeNode) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testDocument(id, subject, schema string) *domain.StoredDocument {
	return &domain.StoredDocument{
		DocumentID:   id,
		CollectionID: "collection-1",
		SubjectID:    subject,
		Schema:       schema,
		Body:         json.RawMessage(`{"resourceType":"QuestionnaireResponse","status":"completed"}`),
		StoredAt:     1700000000000,
	}
}

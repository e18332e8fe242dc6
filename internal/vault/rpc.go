// Package vault uploads questionnaire documents to remote vault nodes over
// JSON-RPC 2.0, either over HTTP or over a persistent WebSocket.
//
// Every client implements storage.DocumentStore so the uploader does not
// care which transport (or how many nodes) sits behind it.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// JSON-RPC methods served by a vault node.
const (
	MethodPutDocument   = "vault.putDocument"
	MethodGetDocument   = "vault.getDocument"
	MethodListDocuments = "vault.listDocuments"
	MethodCount         = "vault.count"
)

// Application error codes returned in the JSON-RPC error object.
const (
	CodeInvalidParams = -32602
	CodeNotFound      = -32004
	CodeConflict      = -32009
)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Unwrap maps application codes onto storage sentinels so callers can use errors.Is.
func (e *rpcError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return storage.ErrNotFound
	case CodeConflict:
		return storage.ErrDuplicateKey
	case CodeInvalidParams:
		return storage.ErrInvalidInput
	default:
		return nil
	}
}

// wireDocument is the document shape on the wire.
type wireDocument struct {
	ID       string          `json:"_id"`
	Owner    string          `json:"owner"`
	Schema   string          `json:"schema"`
	Data     json.RawMessage `json:"data"`
	StoredAt int64           `json:"stored_at"`
}

func toWire(doc *domain.StoredDocument) wireDocument {
	return wireDocument{
		ID:       doc.DocumentID,
		Owner:    doc.SubjectID,
		Schema:   doc.Schema,
		Data:     doc.Body,
		StoredAt: doc.StoredAt,
	}
}

func fromWire(collectionID string, w wireDocument) *domain.StoredDocument {
	return &domain.StoredDocument{
		DocumentID:   w.ID,
		CollectionID: collectionID,
		SubjectID:    w.Owner,
		Schema:       w.Schema,
		Body:         w.Data,
		StoredAt:     w.StoredAt,
	}
}

// callFunc performs one JSON-RPC call and decodes the result into result.
type callFunc func(ctx context.Context, method string, params []interface{}, result interface{}) error

// documentAPI implements storage.DocumentStore over any JSON-RPC transport.
type documentAPI struct {
	invoke callFunc
}

// Put adds a new document. Returns ErrDuplicateKey if the node already holds it.
func (a documentAPI) Put(ctx context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}
	return a.invoke(ctx, MethodPutDocument, []interface{}{doc.CollectionID, toWire(doc)}, nil)
}

// Get retrieves a document. Returns ErrNotFound if not exists.
func (a documentAPI) Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	var w wireDocument
	if err := a.invoke(ctx, MethodGetDocument, []interface{}{collectionID, documentID}, &w); err != nil {
		return nil, err
	}
	return fromWire(collectionID, w), nil
}

// ListBySubject retrieves a subject's documents, ordered by schema then document_id.
func (a documentAPI) ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	var ws []wireDocument
	filter := map[string]string{"owner": subjectID}
	if err := a.invoke(ctx, MethodListDocuments, []interface{}{collectionID, filter}, &ws); err != nil {
		return nil, err
	}

	docs := make([]*domain.StoredDocument, len(ws))
	for i, w := range ws {
		docs[i] = fromWire(collectionID, w)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Schema != docs[j].Schema {
			return docs[i].Schema < docs[j].Schema
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
	return docs, nil
}

// Count returns the number of documents in a collection.
func (a documentAPI) Count(ctx context.Context, collectionID string) (int, error) {
	var n int
	if err := a.invoke(ctx, MethodCount, []interface{}{collectionID}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

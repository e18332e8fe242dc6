package vault

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"synth-cohort/internal/domain"
	"synth-cohort/internal/storage"
)

// Node is one vault replica.
type Node interface {
	storage.DocumentStore
	Endpoint() string
}

// Cluster replicates every write to all nodes. Reads go to the first node
// that answers.
type Cluster struct {
	nodes  []Node
	logger *zap.Logger
}

// Compile-time interface check.
var _ storage.DocumentStore = (*Cluster)(nil)

// NewCluster creates a cluster over nodes. At least one node is required.
func NewCluster(logger *zap.Logger, nodes ...Node) (*Cluster, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("vault cluster: no nodes")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cluster{nodes: nodes, logger: logger}, nil
}

// Nodes returns the replica count.
func (c *Cluster) Nodes() int {
	return len(c.nodes)
}

// Put writes doc to every node concurrently.
// A node that already holds the document counts as replicated, so retrying a
// partially failed upload converges. ErrDuplicateKey is returned only when
// every node already held it.
func (c *Cluster) Put(ctx context.Context, doc *domain.StoredDocument) error {
	if err := storage.ValidateDocument(doc); err != nil {
		return err
	}

	dups := make([]bool, len(c.nodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, node := range c.nodes {
		i, node := i, node
		g.Go(func() error {
			err := node.Put(gctx, doc)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, storage.ErrDuplicateKey):
				dups[i] = true
				return nil
			default:
				c.logger.Warn("vault replica write failed",
					zap.String("node", node.Endpoint()),
					zap.String("document_id", doc.DocumentID),
					zap.Error(err))
				return fmt.Errorf("node %s: %w", node.Endpoint(), err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range dups {
		if !d {
			return nil
		}
	}
	return storage.ErrDuplicateKey
}

// Get reads from the first node that holds the document.
func (c *Cluster) Get(ctx context.Context, collectionID, documentID string) (*domain.StoredDocument, error) {
	var lastErr error
	for _, node := range c.nodes {
		doc, err := node.Get(ctx, collectionID, documentID)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// ListBySubject reads from the first node that answers.
func (c *Cluster) ListBySubject(ctx context.Context, collectionID, subjectID string) ([]*domain.StoredDocument, error) {
	var lastErr error
	for _, node := range c.nodes {
		docs, err := node.ListBySubject(ctx, collectionID, subjectID)
		if err == nil {
			return docs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Count reads from the first node that answers.
func (c *Cluster) Count(ctx context.Context, collectionID string) (int, error) {
	var lastErr error
	for _, node := range c.nodes {
		n, err := node.Count(ctx, collectionID)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return 0, lastErr
}

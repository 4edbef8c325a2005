package port

import (
	"context"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
)

// NodeReader reads node metadata and hierarchy structure.
type NodeReader interface {
	GetNode(ctx context.Context, id string) (*domain.Node, error)
	GetNodes(ctx context.Context, ids []string) (map[string]*domain.Node, error)
	ListNodes(ctx context.Context) ([]*domain.Node, error)
	// ListChildren returns the direct children of parentID; "" lists roots.
	ListChildren(ctx context.Context, h domain.HierarchyType, parentID string) ([]*domain.Node, error)
	// ListDescendants returns every node below rootID, parents before children.
	ListDescendants(ctx context.Context, h domain.HierarchyType, rootID string) ([]*domain.Node, error)
	IsDescendant(ctx context.Context, h domain.HierarchyType, ancestorID, candidateID string) (bool, error)
}

// NodeWriter mutates nodes.
type NodeWriter interface {
	InsertNode(ctx context.Context, n *domain.Node) error
	UpdatePosition(ctx context.Context, id string, h domain.HierarchyType, parentID, code string) error
	UpdateMetadata(ctx context.Context, n *domain.Node) error
	DeleteNode(ctx context.Context, id string) error
}

// AuditQuery filters ledger reads. Zero values mean "any".
type AuditQuery struct {
	NodeID        string
	HierarchyType domain.HierarchyType
	ChangeType    domain.ChangeType
	TriggeredBy   domain.TriggeredBy
	BatchID       string
	Limit         int
	Offset        int
	// Ascending orders oldest-first; the default is newest-first.
	Ascending bool
}

// AuditReader reads the code change ledger.
type AuditReader interface {
	ListChanges(ctx context.Context, q AuditQuery) ([]domain.HierarchyCodeChange, error)
	CountChanges(ctx context.Context, q AuditQuery) (int64, error)
	ChangeStatistics(ctx context.Context) (*domain.ChangeStatistics, error)
}

// AuditAppender writes ledger rows. It is only reachable inside a transaction,
// with no update or delete counterpart.
type AuditAppender interface {
	AppendChange(ctx context.Context, c *domain.HierarchyCodeChange) error
}

// SimilarityStore persists pairwise scores keyed by canonical pair.
type SimilarityStore interface {
	// UpsertSimilarity inserts or refreshes a row. It reports false when an
	// existing manual row was left untouched by a computed score.
	UpsertSimilarity(ctx context.Context, s *domain.NodeSimilarity) (bool, error)
	GetSimilarity(ctx context.Context, a, b string) (*domain.NodeSimilarity, error)
	ListSimilarities(ctx context.Context, nodeID string) ([]domain.NodeSimilarity, error)
	// DeleteComputedSimilarity removes a non-manual row; it reports whether one existed.
	DeleteComputedSimilarity(ctx context.Context, a, b string) (bool, error)
	DeleteSimilaritiesForNode(ctx context.Context, nodeID string) error
}

// LinkStore persists manually declared links.
type LinkStore interface {
	AddLink(ctx context.Context, l *domain.ManualLink) error
	ListLinks(ctx context.Context, nodeID string) ([]domain.ManualLink, error)
	RepointLinks(ctx context.Context, fromID, toID string) error
}

// Queries is everything that can run with or without a transaction.
type Queries interface {
	NodeReader
	NodeWriter
	AuditReader
	SimilarityStore
	LinkStore
}

// Tx is a unit of work. Hierarchy mutations and their ledger rows go through
// the same Tx so they commit or roll back together.
type Tx interface {
	Queries
	AuditAppender
	// LockHierarchy serialises mutations of one hierarchy until commit.
	LockHierarchy(ctx context.Context, h domain.HierarchyType) error
}

// Store is the persistence root.
type Store interface {
	Queries
	// InTx runs fn in a transaction, committing if it returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

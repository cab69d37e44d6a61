// Package searchindex defines the indexing collaborator the search worker
// pushes catalog changes to. Query execution and ranking are out of scope;
// this core only needs to keep an index current.
package searchindex

import (
	"context"
	"sync"
)

// Document is the indexable projection of a product variant.
type Document struct {
	VariantID string
	SKU       string
	Available int
}

// Indexer is the contract a search index integration must satisfy.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Remove(ctx context.Context, variantID string) error
}

// MemoryIndexer is an in-memory fake collaborator standing in for a real
// search engine (e.g. Elasticsearch/OpenSearch), which is out of scope.
type MemoryIndexer struct {
	mu   sync.Mutex
	docs map[string]Document
}

func NewMemoryIndexer() *MemoryIndexer {
	return &MemoryIndexer{docs: make(map[string]Document)}
}

func (m *MemoryIndexer) Index(ctx context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.VariantID] = doc
	return nil
}

func (m *MemoryIndexer) Remove(ctx context.Context, variantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, variantID)
	return nil
}

func (m *MemoryIndexer) Get(variantID string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[variantID]
	return doc, ok
}

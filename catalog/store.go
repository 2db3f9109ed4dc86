package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store manages rule-set document persistence
type Store interface {
	// Add a new document
	Add(doc *Document) error

	// Get a document by name
	Get(name string) (*Document, error)

	// List all active documents, oldest first
	ListActive() ([]*Document, error)

	// Update an existing document
	Update(doc *Document) error

	// Delete a document
	Delete(name string) error
}

// InMemoryStore implements Store using a map keyed by name
type InMemoryStore struct {
	docs map[string]*Document
	mu   sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docs: make(map[string]*Document),
	}
}

// Add stores doc and stamps CreatedAt and UpdatedAt
func (s *InMemoryStore) Add(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrExists, doc.Name)
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.docs[doc.Name] = doc.clone()
	return nil
}

// Get returns a copy of the named document
func (s *InMemoryStore) Get(name string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return doc.clone(), nil
}

// ListActive returns the active documents ordered by creation time
func (s *InMemoryStore) ListActive() ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Document
	for _, doc := range s.docs {
		if doc.Active {
			active = append(active, doc.clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].Name < active[j].Name
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// Update replaces the named document, keeping its ID and CreatedAt
func (s *InMemoryStore) Update(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.docs[doc.Name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, doc.Name)
	}

	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now()
	s.docs[doc.Name] = doc.clone()
	return nil
}

// Delete removes the named document
func (s *InMemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	delete(s.docs, name)
	return nil
}

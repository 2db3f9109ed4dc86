package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/liamcoop/csvetl/expr"
	"github.com/liamcoop/csvetl/internal/logger"
	"github.com/liamcoop/csvetl/rules"
)

// ErrInactive matches requests for the compiled rule set of an inactive document
var ErrInactive = errors.New("rule set is not active")

// Catalog keeps rule-set documents in a Store and their compiled rule sets in memory.
// Safe for concurrent use.
type Catalog struct {
	store    Store
	cache    Cache
	compiler *expr.Compiler
	sets     map[string]*rules.RuleSet // name -> compiled rule set, active documents only
	mu       sync.RWMutex
}

// Option configures a Catalog
type Option func(*Catalog)

// WithCache replaces the default active-documents cache
func WithCache(c Cache) Option {
	return func(cat *Catalog) {
		cat.cache = c
	}
}

// WithCompiler compiles operations with c instead of the shared default compiler
func WithCompiler(c *expr.Compiler) Option {
	return func(cat *Catalog) {
		cat.compiler = c
	}
}

// New creates a catalog over store and compiles every active document
func New(store Store, opts ...Option) (*Catalog, error) {
	cat := &Catalog{
		store: store,
		cache: NewInMemoryCache(DefaultCacheConfig()),
		sets:  make(map[string]*rules.RuleSet),
	}
	for _, opt := range opts {
		opt(cat)
	}

	if cat.compiler == nil {
		c, err := expr.Default()
		if err != nil {
			return nil, err
		}
		cat.compiler = c
	}

	if err := cat.CompileAll(); err != nil {
		return nil, fmt.Errorf("failed to compile rule sets: %w", err)
	}

	return cat, nil
}

// Compile builds the rule set for doc without storing anything
func (cat *Catalog) Compile(doc *Document) (*rules.RuleSet, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return rules.NewRuleSetWithCompiler(cat.compiler, doc.Rules...)
}

// CompileAll compiles all active documents from the store and refreshes the cache
func (cat *Catalog) CompileAll() error {
	docs, err := cat.store.ListActive()
	if err != nil {
		return err
	}

	sets := make(map[string]*rules.RuleSet, len(docs))
	for _, doc := range docs {
		rs, err := cat.Compile(doc)
		if err != nil {
			return fmt.Errorf("rule set %s: %w", doc.Name, err)
		}
		sets[doc.Name] = rs
	}

	cat.mu.Lock()
	cat.sets = sets
	cat.mu.Unlock()

	cat.cache.Set(docs)
	logger.Debug("compiled rule sets", "count", len(docs))

	return nil
}

// Add validates and compiles doc, then stores it. A missing ID is generated.
func (cat *Catalog) Add(doc *Document) error {
	if _, err := cat.store.Get(doc.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, doc.Name)
	}

	rs, err := cat.Compile(doc)
	if err != nil {
		return fmt.Errorf("rule set validation failed: %w", err)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if err := cat.store.Add(doc); err != nil {
		return err
	}

	cat.publish(doc, rs)
	logger.Info("rule set added", "name", doc.Name, "id", doc.ID, "rules", rs.Len())

	return nil
}

// Update recompiles doc and replaces the stored document of the same name
func (cat *Catalog) Update(doc *Document) error {
	rs, err := cat.Compile(doc)
	if err != nil {
		return fmt.Errorf("rule set validation failed: %w", err)
	}

	if err := cat.store.Update(doc); err != nil {
		return err
	}

	cat.publish(doc, rs)
	logger.Info("rule set updated", "name", doc.Name, "id", doc.ID, "active", doc.Active)

	return nil
}

// Delete removes the named document and its compiled rule set
func (cat *Catalog) Delete(name string) error {
	if err := cat.store.Delete(name); err != nil {
		return err
	}

	cat.mu.Lock()
	delete(cat.sets, name)
	cat.mu.Unlock()

	cat.cache.Invalidate()
	logger.Info("rule set deleted", "name", name)

	return nil
}

func (cat *Catalog) publish(doc *Document, rs *rules.RuleSet) {
	cat.mu.Lock()
	if doc.Active {
		cat.sets[doc.Name] = rs
	} else {
		delete(cat.sets, doc.Name)
	}
	cat.mu.Unlock()

	cat.cache.Invalidate()
}

// Get returns the stored document
func (cat *Catalog) Get(name string) (*Document, error) {
	return cat.store.Get(name)
}

// ListActive returns the active documents, from the cache when it is valid
func (cat *Catalog) ListActive() ([]*Document, error) {
	if docs := cat.cache.Get(); docs != nil {
		return docs, nil
	}

	docs, err := cat.store.ListActive()
	if err != nil {
		return nil, err
	}
	cat.cache.Set(docs)

	return docs, nil
}

// RuleSet returns the compiled rule set of an active document
func (cat *Catalog) RuleSet(name string) (*rules.RuleSet, error) {
	cat.mu.RLock()
	rs, ok := cat.sets[name]
	cat.mu.RUnlock()
	if ok {
		return rs, nil
	}

	if _, err := cat.store.Get(name); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrInactive, name)
}

// Package serialize renders converted records into output encodings.
// Serializers register themselves by format tag.
package serialize

import (
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/csvetl/rules"
)

// Serializer defines the interface all output encodings must implement.
type Serializer interface {
	// Name returns the format tag (e.g., "json", "csv")
	Name() string

	// ContentType returns the media type of the encoded output
	ContentType() string

	// Serialize encodes records. targets lists the rule-set targets in rule
	// order, for encodings that need a fixed column layout.
	Serialize(targets []string, records []rules.Record) ([]byte, error)
}

var (
	mu          sync.RWMutex
	serializers = make(map[string]Serializer)
)

// Register adds a serializer to the registry.
func Register(s Serializer) {
	mu.Lock()
	defer mu.Unlock()
	serializers[s.Name()] = s
}

// Get retrieves a serializer by format tag.
func Get(name string) (Serializer, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := serializers[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %v)", name, available())
	}
	return s, nil
}

// Available returns all registered format tags, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	return available()
}

func available() []string {
	names := make([]string, 0, len(serializers))
	for name := range serializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

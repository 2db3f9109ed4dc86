package convert

import (
	"fmt"
	"os"
)

// Sink persists a conversion result under a name
type Sink interface {
	Write(name string, data []byte) error
}

// FileSink writes results to the local filesystem, replacing existing files
type FileSink struct {
	Perm os.FileMode // defaults to 0644
}

func (s FileSink) Write(name string, data []byte) error {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(name, data, perm); err != nil { //nolint:gosec // path is provided by caller
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

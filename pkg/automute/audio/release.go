package audio

import (
	"fmt"

	"go.uber.org/multierr"
)

// releaseStack releases everything pushed onto it in reverse order.
// A nil *releaseStack is not usable; the zero value is.
type releaseStack struct {
	entries []releaseEntry
}

type releaseEntry struct {
	name string
	r    Releaser
}

func (s *releaseStack) push(name string, r Releaser) {
	s.entries = append(s.entries, releaseEntry{name: name, r: r})
}

// unwind releases every entry exactly once, most recent first, and keeps going
// past failures. The combined failures are returned for logging.
func (s *releaseStack) unwind() error {
	var err error

	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if releaseErr := entry.r.Release(); releaseErr != nil {
			err = multierr.Append(err, fmt.Errorf("release %s: %w", entry.name, releaseErr))
		}
	}

	s.entries = nil
	return err
}

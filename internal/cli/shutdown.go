package cli

import (
	"errors"
	"fmt"
	"sync"
)

// shutdown runs registered cleanup steps exactly once, newest first, even
// when called from several exit paths.
type shutdown struct {
	mu   sync.Mutex
	once sync.Once
	fns  []func() error
	err  error
}

func (s *shutdown) add(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
}

func (s *shutdown) run() error {
	s.once.Do(func() {
		s.mu.Lock()
		fns := s.fns
		s.fns = nil
		s.mu.Unlock()

		var errs []error
		for i := len(fns) - 1; i >= 0; i-- {
			if err := fns[i](); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			s.err = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	})
	return s.err
}

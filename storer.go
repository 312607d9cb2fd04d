package shallow

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Storage adapts a ShallowFile to go-git's storer.ShallowStorer, so the
// lock-protocol backed file can serve as the shallow storage of a go-git
// repository.
type Storage struct {
	sf *ShallowFile
}

var _ storer.ShallowStorer = (*Storage)(nil)

// NewStorage returns a Storage backed by sf.
func NewStorage(sf *ShallowFile) *Storage {
	return &Storage{sf: sf}
}

// Shallow returns the current boundary set.
func (s *Storage) Shallow() ([]plumbing.Hash, error) {
	return s.sf.Read()
}

// SetShallow replaces the boundary set wholesale under a single lock
// session. An empty commits slice unshallows the repository, deleting the
// file.
func (s *Storage) SetShallow(commits []plumbing.Hash) error {
	sess, err := s.sf.Lock()
	if err != nil {
		return err
	}

	s.sf.commits = append([]plumbing.Hash(nil), commits...)
	return sess.Unlock(true)
}

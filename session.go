package shallow

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// Assertion line prefixes of the fetch negotiation protocol.
const (
	prefixShallow   = "shallow "
	prefixUnshallow = "unshallow "
)

// Session is the lock token returned by ShallowFile.Lock. It is the only
// handle through which the boundary set may be mutated, and it stays valid
// until Unlock. Sessions are not reusable, a new mutation cycle starts with
// a new Lock call.
type Session struct {
	sf   *ShallowFile
	done bool
}

// Add inserts h into the working set. Adding a hash that is already present
// is a no-op, the set has unique-member semantics. Add fails with
// ErrNotLocked once the session ended.
func (s *Session) Add(h plumbing.Hash) error {
	if s.done {
		return fmt.Errorf("%w: %s", ErrNotLocked, s.sf.name)
	}

	s.add(h)
	return nil
}

// Remove deletes h from the working set. Removing an absent hash is a no-op.
// Remove fails with ErrNotLocked once the session ended.
func (s *Session) Remove(h plumbing.Hash) error {
	if s.done {
		return fmt.Errorf("%w: %s", ErrNotLocked, s.sf.name)
	}

	s.remove(h)
	return nil
}

func (s *Session) add(h plumbing.Hash) {
	for _, c := range s.sf.commits {
		if c == h {
			return
		}
	}

	s.sf.commits = append(s.sf.commits, h)
}

func (s *Session) remove(h plumbing.Hash) {
	for i, c := range s.sf.commits {
		if c == h {
			s.sf.commits = append(s.sf.commits[:i], s.sf.commits[i+1:]...)
			return
		}
	}
}

// ApplyLine applies one negotiation assertion to the working set:
//
//	shallow <hash>      adds the hash to the boundary set
//	unshallow <hash>    removes it
//
// The reported bool is whether anything was applied: an empty line is the
// end-of-batch sentinel and yields (false, nil). Any other prefix fails with
// ErrUnrecognizedAssertion and an undecodable hash fails with
// ErrMalformedRecord, both carrying the offending text.
func (s *Session) ApplyLine(line string) (bool, error) {
	if s.done {
		return false, fmt.Errorf("%w: %s", ErrNotLocked, s.sf.name)
	}

	if len(line) == 0 {
		return false, nil
	}

	switch {
	case strings.HasPrefix(line, prefixShallow):
		h, err := ParseHash(line[len(prefixShallow):])
		if err != nil {
			return false, err
		}

		s.add(h)
	case strings.HasPrefix(line, prefixUnshallow):
		h, err := ParseHash(line[len(prefixUnshallow):])
		if err != nil {
			return false, err
		}

		s.remove(h)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnrecognizedAssertion, line)
	}

	return true, nil
}

// ApplyAssertions reads assertion lines from r and applies them in order,
// stopping at the first empty line or at EOF. The first malformed or
// unrecognized line aborts the batch with its error; earlier lines stay
// applied to the working set.
func (s *Session) ApplyAssertions(r io.Reader) error {
	scn := bufio.NewScanner(r)
	for scn.Scan() {
		applied, err := s.ApplyLine(scn.Text())
		if err != nil {
			return err
		}

		if !applied {
			return nil
		}
	}

	return scn.Err()
}

// Unlock ends the session. With persist set, the working set is
// de-duplicated, sorted and atomically written to disk, or the file is
// deleted when the set is empty. Without persist the lock is dropped and the
// file stays untouched; in-memory changes survive until the next Read.
//
// The lock is released on every path, including after a failed write, and
// the failure is returned to the caller. Unlock on a finished session fails
// with ErrNotLocked.
func (s *Session) Unlock(persist bool) error {
	if s.done {
		return fmt.Errorf("%w: %s", ErrNotLocked, s.sf.name)
	}

	s.done = true
	if !persist {
		return s.sf.lock.Unlock()
	}

	return s.sf.writeChanges()
}

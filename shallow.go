// Package shallow maintains the shallow boundary file of a git repository:
// the list of commits that are present in the object graph but whose parents
// were deliberately left out by a shallow clone or fetch.
//
// The file is a plain sequence of fixed-width hexadecimal commit hashes, one
// per line, sorted and de-duplicated. Absence of the file means the
// repository is not shallow; an empty boundary set is never persisted as an
// empty file.
//
// Mutation follows git's lock protocol: Lock acquires an exclusive
// cross-process lock and returns a Session, the only handle through which
// the set can be changed and the file rewritten or deleted.
package shallow

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/hash"
	"github.com/go-git/go-git/v5/utils/ioutil"

	"github.com/go-git/go-shallow/lockfile"
)

// DefaultName is the file name git uses for the shallow boundary record
// inside the repository metadata directory.
const DefaultName = "shallow"

// ShallowFile gives access to the shallow boundary set of one repository,
// bound to a single file within fs. No I/O happens until Read or Lock is
// called. A ShallowFile is meant for single-threaded use; exclusion against
// other writers, including other processes, is provided by Lock.
type ShallowFile struct {
	fs   billy.Filesystem
	name string
	lock *lockfile.LockFile

	// working set, replaced wholesale by Read and mutated only through a
	// Session
	commits []plumbing.Hash
}

// New returns a ShallowFile bound to the file name within fs, typically a
// filesystem rooted at $GIT_DIR. An empty name selects DefaultName.
func New(fs billy.Filesystem, name string) *ShallowFile {
	if name == "" {
		name = DefaultName
	}

	return &ShallowFile{
		fs:   fs,
		name: name,
		lock: lockfile.New(fs, name),
	}
}

// Read loads the boundary set from disk, replacing the in-memory working
// set, and returns a fresh snapshot that is not aliased to internal state.
// A missing file is not an error, it means the repository is not shallow and
// yields the empty set.
//
// Read takes no lock: it may observe a stale view if a concurrent writer
// commits. Callers needing a consistent view must Read while holding the
// lock.
func (s *ShallowFile) Read() (_ []plumbing.Hash, err error) {
	f, err := s.fs.Open(s.name)
	if err != nil {
		if os.IsNotExist(err) {
			s.commits = nil
			return nil, nil
		}

		return nil, err
	}

	defer ioutil.CheckClose(f, &err)

	var commits []plumbing.Hash
	scn := bufio.NewScanner(f)
	// lines are at most hash.HexSize wide, anything longer is garbage and
	// must classify as a malformed record, not a scanner overflow
	scn.Buffer(make([]byte, hash.HexSize+2), hash.HexSize+2)
	for scn.Scan() {
		h, err := ParseHash(scn.Text())
		if err != nil {
			return nil, err
		}

		commits = append(commits, h)
	}

	if err := scn.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: %s: line too long", ErrMalformedRecord, s.name)
		}

		return nil, err
	}

	s.commits = commits
	return append([]plumbing.Hash(nil), commits...), nil
}

// Lock acquires the exclusive right to mutate the boundary set and returns
// the Session that owns it. The acquisition is a single attempt: if the lock
// is held by any other session, in this process or another, Lock fails with
// ErrLockUnavailable and does not retry.
func (s *ShallowFile) Lock() (*Session, error) {
	if err := s.lock.Lock(); err != nil {
		if errors.Is(err, lockfile.ErrLockHeld) {
			return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, s.name)
		}

		return nil, err
	}

	return &Session{sf: s}, nil
}

// writeChanges persists the working set through the lock file and releases
// the lock on every path, a leaked lock would wedge the repository against
// all future writers.
func (s *ShallowFile) writeChanges() error {
	if len(s.commits) == 0 {
		// no boundary commits left, the repository is not shallow
		// anymore and the file must go away entirely
		err := s.fs.Remove(s.name)
		if err != nil && !os.IsNotExist(err) {
			s.lock.Unlock()
			return err
		}

		return s.lock.Unlock()
	}

	s.commits = canonical(s.commits)
	for _, h := range s.commits {
		if _, err := fmt.Fprintf(s.lock, "%s\n", h.String()); err != nil {
			s.lock.Unlock()
			return err
		}
	}

	return s.lock.Commit()
}

// canonical returns commits de-duplicated and sorted in increasing hash
// order, the only form ever written to disk. Two equal logical sets always
// serialize to byte-identical files.
func canonical(commits []plumbing.Hash) []plumbing.Hash {
	seen := make(map[plumbing.Hash]bool, len(commits))
	out := make([]plumbing.Hash, 0, len(commits))
	for _, h := range commits {
		if seen[h] {
			continue
		}

		seen[h] = true
		out = append(out, h)
	}

	plumbing.HashesSort(out)
	return out
}

// ParseHash decodes one fixed-width hexadecimal commit hash.
// plumbing.NewHash swallows decode failures, so width and hex validity are
// checked here and reported as ErrMalformedRecord with the offending text.
func ParseHash(text string) (plumbing.Hash, error) {
	if len(text) != hash.HexSize {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrMalformedRecord, text)
	}

	if _, err := hex.DecodeString(text); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrMalformedRecord, text)
	}

	return plumbing.NewHash(text), nil
}

package shallow

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/stretchr/testify/suite"
)

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

type StorageSuite struct {
	suite.Suite

	sf *ShallowFile
	st storer.ShallowStorer
}

func (s *StorageSuite) SetupTest() {
	s.sf = New(memfs.New(), "")
	s.st = NewStorage(s.sf)
}

func (s *StorageSuite) TestSetShallow() {
	commitA := plumbing.NewHash("bc9968d75e48de59f0870ffb71f5e160bbbdcf52")
	commitB := plumbing.NewHash("aa9968d75e48de59f0870ffb71f5e160bbbdcf52")

	s.NoError(s.st.SetShallow([]plumbing.Hash{commitA, commitB, commitA}))

	commits, err := s.st.Shallow()
	s.NoError(err)
	// persisted in canonical order, duplicates collapsed
	s.Equal([]plumbing.Hash{commitB, commitA}, commits)
}

func (s *StorageSuite) TestSetShallowReplaces() {
	commitA := plumbing.NewHash("bc9968d75e48de59f0870ffb71f5e160bbbdcf52")
	commitB := plumbing.NewHash("aa9968d75e48de59f0870ffb71f5e160bbbdcf52")

	s.NoError(s.st.SetShallow([]plumbing.Hash{commitA}))
	s.NoError(s.st.SetShallow([]plumbing.Hash{commitB}))

	commits, err := s.st.Shallow()
	s.NoError(err)
	s.Equal([]plumbing.Hash{commitB}, commits)
}

func (s *StorageSuite) TestSetShallowEmptyDeletesFile() {
	commitA := plumbing.NewHash("bc9968d75e48de59f0870ffb71f5e160bbbdcf52")

	s.NoError(s.st.SetShallow([]plumbing.Hash{commitA}))
	s.NoError(s.st.SetShallow(nil))

	_, err := s.sf.fs.Stat(DefaultName)
	s.True(os.IsNotExist(err))

	commits, err := s.st.Shallow()
	s.NoError(err)
	s.Empty(commits)
}

func (s *StorageSuite) TestShallowEmptyRepository() {
	commits, err := s.st.Shallow()
	s.NoError(err)
	s.Empty(commits)
}

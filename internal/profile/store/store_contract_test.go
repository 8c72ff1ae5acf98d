package store

import (
	"context"

	"github.com/stretchr/testify/suite"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
)

type recordStore interface {
	Get(ctx context.Context, account id.AccountID) (*models.Entry, bool, error)
	Put(ctx context.Context, account id.AccountID, entry *models.Entry) error
	Remove(ctx context.Context, account id.AccountID) (*models.Entry, bool, error)
}

// contractSuite holds the record store behaviour every backend must share.
// Backend suites embed it and set newStore.
type contractSuite struct {
	suite.Suite
	newStore func() recordStore
}

func sampleEntry(name string, deposit id.Balance) *models.Entry {
	return &models.Entry{
		Profile: models.Profile{Name: []byte(name), Age: 30, Title: []byte("eng")},
		Deposit: deposit,
	}
}

func (s *contractSuite) TestGet() {
	ctx := context.Background()
	store := s.newStore()

	s.Run("absent account is an empty result, not an error", func() {
		entry, ok, err := store.Get(ctx, id.NewAccountID())
		s.Require().NoError(err)
		s.False(ok)
		s.Nil(entry)
	})

	s.Run("returns what was put", func() {
		account := id.NewAccountID()
		s.Require().NoError(store.Put(ctx, account, sampleEntry("alice", 50)))

		entry, ok, err := store.Get(ctx, account)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("alice", string(entry.Profile.Name))
		s.Equal(uint8(30), entry.Profile.Age)
		s.Equal("eng", string(entry.Profile.Title))
		s.Equal(id.Balance(50), entry.Deposit)
	})
}

func (s *contractSuite) TestPutOverwrites() {
	ctx := context.Background()
	store := s.newStore()
	account := id.NewAccountID()

	s.Require().NoError(store.Put(ctx, account, sampleEntry("alice", 50)))
	s.Require().NoError(store.Put(ctx, account, sampleEntry("alicia", 50)))
	s.Require().NoError(store.Put(ctx, account, sampleEntry("alicia", 50)))

	entry, ok, err := store.Get(ctx, account)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("alicia", string(entry.Profile.Name))
	s.Equal(id.Balance(50), entry.Deposit)
}

func (s *contractSuite) TestRemove() {
	ctx := context.Background()
	store := s.newStore()

	s.Run("returns and deletes the entry", func() {
		account := id.NewAccountID()
		s.Require().NoError(store.Put(ctx, account, sampleEntry("bob", 7)))

		removed, ok, err := store.Remove(ctx, account)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("bob", string(removed.Profile.Name))
		s.Equal(id.Balance(7), removed.Deposit)

		_, ok, err = store.Get(ctx, account)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("absent account signals absence", func() {
		removed, ok, err := store.Remove(ctx, id.NewAccountID())
		s.Require().NoError(err)
		s.False(ok)
		s.Nil(removed)
	})
}

func (s *contractSuite) TestEmptyFieldsAndLargeDeposit() {
	ctx := context.Background()
	store := s.newStore()
	account := id.NewAccountID()
	entry := &models.Entry{Profile: models.Profile{Age: 255}, Deposit: id.Balance(^uint64(0))}

	s.Require().NoError(store.Put(ctx, account, entry))
	got, ok, err := store.Get(ctx, account)
	s.Require().NoError(err)
	s.True(ok)
	s.Empty(got.Profile.Name)
	s.Empty(got.Profile.Title)
	s.Equal(uint8(255), got.Profile.Age)
	s.Equal(id.Balance(^uint64(0)), got.Deposit)
}

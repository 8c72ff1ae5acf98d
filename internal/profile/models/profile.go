package models

import (
	"bytes"
	"fmt"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// Profile is the bounded record an account registers. Name and Title are
// raw bytes; their length is checked against the configured maximum when the
// profile is built and never truncated.
type Profile struct {
	Name  []byte
	Age   uint8
	Title []byte
}

// NewProfile validates name and title against maxLength and returns a
// profile that owns copies of both slices.
func NewProfile(name []byte, age uint8, title []byte, maxLength int) (Profile, error) {
	if len(name) > maxLength {
		return Profile{}, dErrors.New(dErrors.CodeTooLong,
			fmt.Sprintf("name is %d bytes, maximum is %d", len(name), maxLength))
	}
	if len(title) > maxLength {
		return Profile{}, dErrors.New(dErrors.CodeTooLong,
			fmt.Sprintf("title is %d bytes, maximum is %d", len(title), maxLength))
	}
	return Profile{
		Name:  bytes.Clone(name),
		Age:   age,
		Title: bytes.Clone(title),
	}, nil
}

// Equal compares field by field; nil and empty byte slices are equal.
func (p Profile) Equal(o Profile) bool {
	return p.Age == o.Age && bytes.Equal(p.Name, o.Name) && bytes.Equal(p.Title, o.Title)
}

// Entry is what the record store keeps per account: the profile and the
// deposit reserved for it.
type Entry struct {
	Profile Profile
	Deposit id.Balance
}

// Clone returns a deep copy so stores never share byte slices with callers.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{
		Profile: Profile{
			Name:  bytes.Clone(e.Profile.Name),
			Age:   e.Profile.Age,
			Title: bytes.Clone(e.Profile.Title),
		},
		Deposit: e.Deposit,
	}
}

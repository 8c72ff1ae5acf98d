package store

import (
	"encoding/json"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
)

// storedEntry is the serialized form used by key-value backends. Byte fields
// are base64 in JSON.
type storedEntry struct {
	Name    []byte `json:"name"`
	Age     uint8  `json:"age"`
	Title   []byte `json:"title"`
	Deposit uint64 `json:"deposit"`
}

func encodeEntry(entry *models.Entry) ([]byte, error) {
	return json.Marshal(storedEntry{
		Name:    entry.Profile.Name,
		Age:     entry.Profile.Age,
		Title:   entry.Profile.Title,
		Deposit: uint64(entry.Deposit),
	})
}

func decodeEntry(data []byte) (*models.Entry, error) {
	var se storedEntry
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}
	return &models.Entry{
		Profile: models.Profile{Name: se.Name, Age: se.Age, Title: se.Title},
		Deposit: id.Balance(se.Deposit),
	}, nil
}

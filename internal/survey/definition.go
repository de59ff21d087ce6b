package survey

import (
	"encoding/json"
	"io"

	"github.com/myrjola/surveycall/internal/errors"
)

// Definition is the serialised form of a survey as imported from files and stored in the database.
type Definition struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// DecodeDefinition reads a JSON survey definition.
func DecodeDefinition(r io.Reader) (Definition, error) {
	var d Definition
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&d); err != nil {
		return Definition{}, errors.Wrap(err, "decode survey definition")
	}
	return d, nil
}

func (d Definition) Build() (*Survey, error) {
	return New(d.ID, d.Name, d.Questions)
}

func (s *Survey) Definition() Definition {
	return Definition{ID: s.ID, Name: s.Name, Questions: s.Questions()}
}

package csvdb

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Cheep is one row of the legacy cheep file: author,"message",unix_timestamp
type Cheep struct {
	Author    string `json:"author"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// CheepCodec encodes Cheep rows. Embedded quotes in the message are doubled
// so the row stays readable.
type CheepCodec struct{}

func (CheepCodec) Header() []string { return []string{"Author", "Message", "Timestamp"} }

func (CheepCodec) Decode(fields []string) (Cheep, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return Cheep{}, errors.Wrapf(err, "bad timestamp %q", fields[2])
	}
	if fields[0] == "" {
		return Cheep{}, errors.New("empty author")
	}
	return Cheep{Author: fields[0], Message: fields[1], Timestamp: ts}, nil
}

// Encode rejects authors the unquoted first column can't carry.
func (CheepCodec) Encode(c Cheep) ([]string, error) {
	if c.Author == "" || strings.ContainsAny(c.Author, ",\"\r\n") {
		return nil, errors.Wrapf(ErrUnencodable, "author %q", c.Author)
	}
	return []string{
		c.Author,
		`"` + strings.ReplaceAll(c.Message, `"`, `""`) + `"`,
		strconv.FormatInt(c.Timestamp, 10),
	}, nil
}

// NewCheepDatabase opens the legacy cheep file at path.
func NewCheepDatabase(path string) *Database[Cheep] {
	return New[Cheep](path, CheepCodec{})
}

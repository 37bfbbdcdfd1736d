package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultLimit = 10
	MaxLimit     = 250
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Pagination is bound from the query string of list endpoints.
type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"`
}

// Size is Limit clamped to [1, MaxLimit], DefaultLimit when unset.
func (p Pagination) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Cursor marks the last row of the previous page of an id-descending listing.
type Cursor struct {
	ID int64 `json:"id"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// EncodeCursor returns an opaque, URL safe token.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID <= 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// Trim cuts a limit+1 fetch down to one page and reports where the next one starts.
func Trim[T any](rows []T, limit int, id func(T) int64) ([]T, *PageInfo) {
	if len(rows) <= limit {
		return rows, &PageInfo{}
	}
	rows = rows[:limit]
	return rows, &PageInfo{
		HasMore:    true,
		NextCursor: EncodeCursor(Cursor{ID: id(rows[len(rows)-1])}),
	}
}

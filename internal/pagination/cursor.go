// Package pagination implements keyset cursors for listings ordered newest
// first.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the position after the last row served: rows strictly older than
// Timestamp, or equally old with a smaller Key, come next.
type Cursor struct {
	Key       string
	Timestamp time.Time
}

type wireCursor struct {
	At  int64  `json:"t"`
	Key string `json:"k"`
}

// After reports whether a row with (key, ts) sorts after the cursor.
func (c *Cursor) After(key string, ts time.Time) bool {
	if c == nil {
		return true
	}
	if ts.Equal(c.Timestamp) {
		return key < c.Key
	}
	return ts.Before(c.Timestamp)
}

// EncodeCursor returns an opaque URL-safe token, or "" when key is empty.
func EncodeCursor(key string, ts time.Time) string {
	if key == "" {
		return ""
	}
	raw, _ := json.Marshal(wireCursor{At: ts.UnixNano(), Key: key})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. The empty token means the first page.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var wc wireCursor
	if err := json.Unmarshal(raw, &wc); err != nil || wc.Key == "" {
		return nil, ErrInvalidCursor
	}
	return &Cursor{Key: wc.Key, Timestamp: time.Unix(0, wc.At).UTC()}, nil
}

// Trim cuts a limit+1 fetch down to limit. When a row was cut it returns the
// token for the last kept row and true.
func Trim[T any](rows []T, limit int, cursorOf func(T) (string, time.Time)) ([]T, string, bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, "", false
	}
	rows = rows[:limit]
	key, ts := cursorOf(rows[limit-1])
	return rows, EncodeCursor(key, ts), true
}

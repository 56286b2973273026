// Package pagination provides opaque cursors over append-only logs.
//
// Records in the analysis logs have no IDs; their identity is array
// position, which appends never move. A cursor therefore carries the
// index of the last item served plus its timestamp as a staleness check.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrStaleCursor is returned when a cursor no longer matches the log it
// was issued for, e.g. after the backing collection was reset.
var ErrStaleCursor = errors.New("stale cursor")

// Cursor represents a position in an append-only log.
type Cursor struct {
	Timestamp time.Time
	Index     int
}

// Encode returns an opaque cursor string for the item at index.
func Encode(ts time.Time, index int) string {
	raw := fmt.Sprintf("%d|%d", ts.UnixNano(), index)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return nil, fmt.Errorf("invalid cursor")
	}
	return &Cursor{
		Timestamp: time.Unix(0, nanos).UTC(),
		Index:     index,
	}, nil
}

// Page slices a fully-loaded log into one page after the given cursor.
// Returns the page, the cursor for the next page, and a has_more flag.
// A nil cursor starts from the beginning. A cursor whose index or
// timestamp no longer matches the log fails with ErrStaleCursor.
func Page[T any](items []T, after *Cursor, limit int, timestampOf func(T) time.Time) ([]T, string, bool, error) {
	start := 0
	if after != nil {
		if after.Index >= len(items) {
			return nil, "", false, ErrStaleCursor
		}
		if !timestampOf(items[after.Index]).Equal(after.Timestamp) {
			return nil, "", false, ErrStaleCursor
		}
		start = after.Index + 1
	}
	if start >= len(items) {
		return []T{}, "", false, nil
	}

	end := start + limit
	if end >= len(items) {
		return items[start:], "", false, nil
	}

	page := items[start:end]
	last := end - 1
	return page, Encode(timestampOf(items[last]), last), true, nil
}

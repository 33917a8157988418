package compute

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// CursorVersion is the current continuation token format version.
const CursorVersion = 1

// ErrInvalidCursor indicates a continuation token could not be decoded.
var ErrInvalidCursor = fmt.Errorf("compute: %w: invalid continuation token", domain.ErrInvalidInput)

// Cursor is the continuation token of a listing that spans every zone or
// region. It records the scope being listed and that scope's own page token.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`
	// Scope is the zone or region name the next page comes from.
	Scope string `json:"scope"`
	// Token is the page token within Scope. Empty means its first page.
	Token string `json:"token,omitempty"`
}

// Encode serialises the cursor to an opaque token.
func (c Cursor) Encode() string {
	c.Version = CursorVersion
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a continuation token. The empty token is the start
// of the listing.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{Version: CursorVersion}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if cursor.Version < 1 || cursor.Version > CursorVersion || cursor.Scope == "" {
		return Cursor{}, ErrInvalidCursor
	}
	return cursor, nil
}

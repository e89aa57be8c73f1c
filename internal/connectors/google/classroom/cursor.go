package classroom

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// ErrInvalidCursor indicates the cursor could not be decoded.
var ErrInvalidCursor = errors.New("classroom: invalid cursor format")

// Cursor wraps a Classroom page token with the listing it belongs to.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`
	// Listing names the listing the token was issued for.
	Listing string `json:"l"`
	// PageToken is the Classroom nextPageToken.
	PageToken string `json:"t"`
}

// EncodeCursor serialises a page token for listing. An empty token yields
// an empty cursor.
func EncodeCursor(listing, pageToken string) string {
	if pageToken == "" {
		return ""
	}
	data, err := json.Marshal(Cursor{Version: CursorVersion, Listing: listing, PageToken: pageToken})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns the page token held by s for listing.
// An empty cursor decodes to an empty token.
func DecodeCursor(listing, s string) (string, error) {
	if s == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return "", ErrInvalidCursor
	}
	if c.Version < 1 || c.Version > CursorVersion || c.Listing != listing || c.PageToken == "" {
		return "", ErrInvalidCursor
	}
	return c.PageToken, nil
}

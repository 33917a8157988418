package domain

// Record is a decoded JSON object as returned by a Google REST endpoint.
type Record = map[string]any

// DefaultTokenKey is the response field most Google list endpoints use for
// the continuation token.
const DefaultTokenKey = "nextPageToken"

// Page is one response of a cursor-paginated listing endpoint.
// A page with an empty NextPageToken is the final page.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}

// Last returns true if no further pages follow this one.
func (p Page[T]) Last() bool {
	return p.NextPageToken == ""
}

// ListOptions bounds how much of a listing a caller consumes.
// The zero value lists everything.
type ListOptions[T any] struct {
	// MaxResults caps the number of yielded items. Zero or negative means no cap.
	MaxResults int

	// Filter skips items for which it returns false.
	// Skipped items do not count toward MaxResults.
	Filter func(T) bool

	// Break stops the listing permanently at the first item for which it
	// returns true. The breaking item is not yielded and no further pages
	// are fetched.
	Break func(T) bool
}

// Limited returns true if MaxResults caps the listing.
func (o ListOptions[T]) Limited() bool {
	return o.MaxResults > 0
}

// PageKeys names the fields that hold the items array and the continuation
// token in a raw JSON list response.
type PageKeys struct {
	Items string
	Token string
}

// RecordPage extracts a Page from a raw JSON list response.
// A missing or malformed items field yields a page with zero items.
// Items that are not JSON objects are skipped.
func RecordPage(resp Record, keys PageKeys) Page[Record] {
	tokenKey := keys.Token
	if tokenKey == "" {
		tokenKey = DefaultTokenKey
	}

	var page Page[Record]
	if tok, ok := resp[tokenKey].(string); ok {
		page.NextPageToken = tok
	}

	raw, ok := resp[keys.Items].([]any)
	if !ok {
		return page
	}
	page.Items = make([]Record, 0, len(raw))
	for _, item := range raw {
		if rec, ok := item.(map[string]any); ok {
			page.Items = append(page.Items, rec)
		}
	}
	return page
}

// RawListRequest describes a listing of any Google REST collection.
type RawListRequest struct {
	// Service selects the OAuth scope: bigquery, storage, drive, gmail,
	// compute or dataproc.
	Service string

	// URL is the collection URL. A relative path is resolved against the
	// service's API endpoint.
	URL string

	// Params are fixed query parameters sent with every page request.
	Params map[string][]string

	// Keys name the items and continuation token fields of the response.
	Keys PageKeys

	// TokenParam is the query parameter carrying the page token.
	// Empty means "pageToken".
	TokenParam string

	// MaxResults caps the number of returned records. Zero lists everything.
	MaxResults int
}

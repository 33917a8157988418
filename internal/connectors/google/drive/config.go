package drive

import (
	"fmt"
	"slices"
	"strings"
)

// ListQuery selects the files ListFiles returns.
type ListQuery struct {
	// Q is a raw Drive search expression, combined with the filters below.
	Q string

	// Spaces is "drive", "appDataFolder" or both comma separated.
	Spaces string

	// Fields selects the file fields returned, e.g. "files(id, name)".
	// nextPageToken is always added so paging keeps working.
	Fields []string

	// MimeTypes limits the listing to these MIME types (optional).
	MimeTypes []string

	// FolderIDs limits the listing to children of these folders (optional).
	FolderIDs []string

	// Name matches files with exactly this name (optional).
	Name string

	// IncludeTrashed lists trashed files too.
	IncludeTrashed bool
}

// String builds the Drive search expression.
func (q ListQuery) String() string {
	var terms []string
	if q.Q != "" {
		terms = append(terms, q.Q)
	}
	if q.Name != "" {
		terms = append(terms, fmt.Sprintf("name = %s", quote(q.Name)))
	}
	if len(q.MimeTypes) > 0 {
		terms = append(terms, anyOf(q.MimeTypes, func(m string) string {
			return "mimeType = " + quote(m)
		}))
	}
	if len(q.FolderIDs) > 0 {
		terms = append(terms, anyOf(q.FolderIDs, func(id string) string {
			return quote(id) + " in parents"
		}))
	}
	if !q.IncludeTrashed {
		terms = append(terms, "trashed = false")
	}
	return strings.Join(terms, " and ")
}

func (q ListQuery) fields() string {
	if len(q.Fields) == 0 {
		return ""
	}
	fields := slices.Clone(q.Fields)
	if !slices.Contains(fields, "nextPageToken") {
		fields = append(fields, "nextPageToken")
	}
	return strings.Join(fields, ", ")
}

func anyOf(values []string, term func(string) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = term(v)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

// quote wraps s in single quotes, escaping quotes and backslashes.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

package gmail

import (
	"strconv"
	"strings"
	"time"
)

// Well-known system labels.
const (
	LabelInbox = "INBOX"
	LabelSent  = "SENT"
	LabelSpam  = "SPAM"
	LabelTrash = "TRASH"
)

// ListQuery selects messages or drafts.
type ListQuery struct {
	// Query is the search expression.
	Query Query
	// LabelIDs limits message listings to messages carrying all these labels.
	LabelIDs []string
	// PageSize is the per-request page size. Zero uses the API default.
	PageSize int64
	// IncludeSpamTrash includes spam and trash.
	IncludeSpamTrash bool
}

// Term is a search operator with one or more values. Several values are
// OR-joined.
type Term struct {
	Key    string
	Values []string
}

// Query builds a Gmail search expression.
type Query struct {
	// Raw is passed through verbatim ahead of the generated terms.
	Raw string
	// Has and Is produce one term per value ("has:attachment is:unread").
	Has []string
	Is  []string
	// Terms are emitted in order, e.g. {Key: "from", Values: [...]}.
	Terms []Term
	// After and Before restrict the message date. Zero means unbounded.
	After  time.Time
	Before time.Time
}

// String renders the expression. An empty query renders "".
func (q Query) String() string {
	var parts []string
	if raw := strings.TrimSpace(q.Raw); raw != "" {
		parts = append(parts, raw)
	}
	for _, v := range q.Has {
		parts = append(parts, "has:"+v)
	}
	for _, v := range q.Is {
		parts = append(parts, "is:"+v)
	}
	for _, t := range q.Terms {
		if term := t.render(); term != "" {
			parts = append(parts, term)
		}
	}
	if !q.After.IsZero() {
		parts = append(parts, "after:"+strconv.FormatInt(q.After.Unix(), 10))
	}
	if !q.Before.IsZero() {
		parts = append(parts, "before:"+strconv.FormatInt(q.Before.Unix(), 10))
	}
	return strings.Join(parts, " ")
}

func (t Term) render() string {
	var vals []string
	for _, v := range t.Values {
		if v = strings.TrimSpace(v); v != "" {
			vals = append(vals, t.Key+":"+quote(v))
		}
	}
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return vals[0]
	default:
		return "(" + strings.Join(vals, " OR ") + ")"
	}
}

func quote(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + strings.ReplaceAll(v, `"`, "") + `"`
	}
	return v
}

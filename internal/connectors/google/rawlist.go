package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// Ensure RecordPager implements the interface.
var _ driven.PageFetcher[domain.Record] = (*RecordPager)(nil)

// DefaultTokenParam is the query parameter most list endpoints accept the
// continuation token under.
const DefaultTokenParam = "pageToken"

// RecordPager fetches pages of any Google REST list endpoint as raw JSON.
// The URL and query parameters are fixed at construction; only the page
// token changes between requests.
type RecordPager struct {
	client     *http.Client
	retryer    *Retryer
	op         string
	url        *url.URL
	params     url.Values
	keys       domain.PageKeys
	tokenParam string
}

// NewRecordPager creates a pager for rawURL. keys.Items names the response
// field holding the items; keys.Token defaults to "nextPageToken".
// A query string on rawURL is merged into params; params win on conflict.
func NewRecordPager(client *http.Client, retryer *Retryer, rawURL string, params url.Values, keys domain.PageKeys) (*RecordPager, error) {
	if keys.Items == "" {
		return nil, domain.Invalid("response key is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.Invalid("list url %q is not absolute", rawURL)
	}

	fixed := u.Query()
	for k, v := range params {
		fixed[k] = append([]string(nil), v...)
	}
	u.RawQuery = ""
	u.Fragment = ""

	return &RecordPager{
		client:     client,
		retryer:    retryer,
		op:         "raw.list " + u.Path,
		url:        u,
		params:     fixed,
		keys:       keys,
		tokenParam: DefaultTokenParam,
	}, nil
}

// WithTokenParam sets the query parameter carrying the page token.
func (p *RecordPager) WithTokenParam(name string) *RecordPager {
	p.tokenParam = name
	return p
}

// FetchPage implements driven.PageFetcher.
func (p *RecordPager) FetchPage(ctx context.Context, pageToken string) (domain.Page[domain.Record], error) {
	query := make(url.Values, len(p.params)+1)
	for k, v := range p.params {
		query[k] = v
	}
	if pageToken != "" {
		query.Set(p.tokenParam, pageToken)
	}
	target := *p.url
	target.RawQuery = query.Encode()

	resp, err := Call(ctx, p.retryer, p.op, func(ctx context.Context) (domain.Record, error) {
		return p.get(ctx, target.String())
	})
	if err != nil {
		return domain.Page[domain.Record]{}, err
	}
	pagesFetchedTotal.WithLabelValues(p.op).Inc()
	return domain.RecordPage(resp, p.keys), nil
}

func (p *RecordPager) get(ctx context.Context, target string) (domain.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}

	var body domain.Record
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, Permanent(fmt.Errorf("decode list response: %w", err))
	}
	return body, nil
}

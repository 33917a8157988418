// Package gmail wraps the Gmail v1 API for the authenticated user: profile,
// message and draft listings, sending raw RFC 2822 messages and reading
// attachments.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// Me addresses the authenticated user.
const Me = "me"

// Message formats accepted by GetMessage and GetDraft.
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
	FormatMinimal  = "minimal"
	FormatRaw      = "raw"
)

// Client is a Gmail API client.
type Client struct {
	svc     *gmail.Service
	retryer *google.Retryer
}

// NewClient wraps an existing service.
func NewClient(svc *gmail.Service, retryer *google.Retryer) *Client {
	return &Client{svc: svc, retryer: retryer}
}

// Open creates a client from connection settings.
func Open(ctx context.Context, cfg google.Config, retry google.RetryConfig) (*Client, error) {
	svc, err := google.NewGmailService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewClient(svc, google.NewRetryer(retry, google.NewRateLimiter(google.ServiceGmail))), nil
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*gmail.Profile, error) {
	return google.Call(ctx, c.retryer, "gmail.users.getProfile", func(ctx context.Context) (*gmail.Profile, error) {
		return c.svc.Users.GetProfile(Me).Context(ctx).Do()
	})
}

// GetMessage returns a message in the given format. Empty format means full.
func (c *Client) GetMessage(ctx context.Context, id, format string) (*gmail.Message, error) {
	if id == "" {
		return nil, domain.Invalid("message id is required")
	}
	return google.Call(ctx, c.retryer, "gmail.messages.get", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Users.Messages.Get(Me, id).Format(orFull(format)).Context(ctx).Do()
	})
}

// GetDraft returns a draft in the given format. Empty format means full.
func (c *Client) GetDraft(ctx context.Context, id, format string) (*gmail.Draft, error) {
	if id == "" {
		return nil, domain.Invalid("draft id is required")
	}
	return google.Call(ctx, c.retryer, "gmail.drafts.get", func(ctx context.Context) (*gmail.Draft, error) {
		return c.svc.Users.Drafts.Get(Me, id).Format(orFull(format)).Context(ctx).Do()
	})
}

func orFull(format string) string {
	if format == "" {
		return FormatFull
	}
	return format
}

// messagePager lists message ids.
func (c *Client) messagePager(q ListQuery) driven.PageFetcher[*gmail.Message] {
	query := q.Query.String()
	return google.Pager(c.retryer, "gmail.messages.list",
		func(ctx context.Context, token string) (*gmail.ListMessagesResponse, error) {
			call := c.svc.Users.Messages.List(Me).IncludeSpamTrash(q.IncludeSpamTrash).Context(ctx)
			if query != "" {
				call = call.Q(query)
			}
			if len(q.LabelIDs) > 0 {
				call = call.LabelIds(q.LabelIDs...)
			}
			if q.PageSize > 0 {
				call = call.MaxResults(q.PageSize)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *gmail.ListMessagesResponse) ([]*gmail.Message, string) {
			return resp.Messages, resp.NextPageToken
		},
	)
}

// ListMessages lists message references (id and thread id only).
func (c *Client) ListMessages(q ListQuery, opts domain.ListOptions[*gmail.Message]) *services.Iterator[*gmail.Message] {
	return services.List(c.messagePager(q), opts)
}

// FullMessages lists messages and fetches each one in full. Filter and
// Break see the full message.
func (c *Client) FullMessages(q ListQuery, opts domain.ListOptions[*gmail.Message]) *services.Iterator[*gmail.Message] {
	if opts.Limited() && opts.Filter == nil && (q.PageSize == 0 || q.PageSize > int64(opts.MaxResults)) {
		q.PageSize = int64(opts.MaxResults)
	}
	ids := c.messagePager(q)
	return services.List(driven.PageFetcherFunc[*gmail.Message](func(ctx context.Context, token string) (domain.Page[*gmail.Message], error) {
		page, err := ids.FetchPage(ctx, token)
		if err != nil {
			return page, err
		}
		full := make([]*gmail.Message, 0, len(page.Items))
		for _, ref := range page.Items {
			msg, err := c.GetMessage(ctx, ref.Id, FormatFull)
			if err != nil {
				return domain.Page[*gmail.Message]{}, err
			}
			full = append(full, msg)
		}
		return domain.Page[*gmail.Message]{Items: full, NextPageToken: page.NextPageToken}, nil
	}), opts)
}

// ListDrafts lists draft references.
func (c *Client) ListDrafts(q ListQuery, opts domain.ListOptions[*gmail.Draft]) *services.Iterator[*gmail.Draft] {
	query := q.Query.String()
	return services.List(google.Pager(c.retryer, "gmail.drafts.list",
		func(ctx context.Context, token string) (*gmail.ListDraftsResponse, error) {
			call := c.svc.Users.Drafts.List(Me).IncludeSpamTrash(q.IncludeSpamTrash).Context(ctx)
			if query != "" {
				call = call.Q(query)
			}
			if q.PageSize > 0 {
				call = call.MaxResults(q.PageSize)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *gmail.ListDraftsResponse) ([]*gmail.Draft, string) {
			return resp.Drafts, resp.NextPageToken
		},
	), opts)
}

// CreateDraft stores a raw RFC 2822 message as a draft.
func (c *Client) CreateDraft(ctx context.Context, raw []byte) (*gmail.Draft, error) {
	if len(raw) == 0 {
		return nil, domain.Invalid("message is empty")
	}
	draft := &gmail.Draft{Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}}
	return google.Call(ctx, c.retryer, "gmail.drafts.create", func(ctx context.Context) (*gmail.Draft, error) {
		return c.svc.Users.Drafts.Create(Me, draft).Context(ctx).Do()
	})
}

// SendDraft sends an existing draft.
func (c *Client) SendDraft(ctx context.Context, draftID string) (*gmail.Message, error) {
	if draftID == "" {
		return nil, domain.Invalid("draft id is required")
	}
	return google.Call(ctx, c.retryer, "gmail.drafts.send", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Users.Drafts.Send(Me, &gmail.Draft{Id: draftID}).Context(ctx).Do()
	})
}

// SendMessage sends a raw RFC 2822 message.
func (c *Client) SendMessage(ctx context.Context, raw []byte) (*gmail.Message, error) {
	if len(raw) == 0 {
		return nil, domain.Invalid("message is empty")
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	return google.Call(ctx, c.retryer, "gmail.messages.send", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Users.Messages.Send(Me, msg).Context(ctx).Do()
	})
}

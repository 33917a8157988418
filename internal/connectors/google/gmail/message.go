package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// Attachment is a decoded message attachment.
type Attachment struct {
	MessageID    string
	AttachmentID string
	PartID       string
	Filename     string
	MimeType     string
	// Date is the message's internal date.
	Date time.Time
	Data []byte
}

// Attachments fetches a message and downloads every part that carries a
// filename.
func (c *Client) Attachments(ctx context.Context, messageID string) ([]Attachment, error) {
	msg, err := c.GetMessage(ctx, messageID, FormatFull)
	if err != nil {
		return nil, err
	}
	date := MessageDate(msg)

	var out []Attachment
	for _, part := range AttachmentParts(msg.Payload) {
		att := Attachment{
			MessageID: msg.Id,
			PartID:    part.PartId,
			Filename:  part.Filename,
			MimeType:  part.MimeType,
			Date:      date,
		}
		data := ""
		if part.Body != nil {
			att.AttachmentID = part.Body.AttachmentId
			data = part.Body.Data
		}
		if att.AttachmentID != "" {
			body, err := google.Call(ctx, c.retryer, "gmail.attachments.get", func(ctx context.Context) (*gmail.MessagePartBody, error) {
				return c.svc.Users.Messages.Attachments.Get(Me, msg.Id, att.AttachmentID).Context(ctx).Do()
			})
			if err != nil {
				return nil, err
			}
			data = body.Data
		}
		if att.Data, err = DecodeBase64URL(data); err != nil {
			return nil, fmt.Errorf("decode attachment %q: %w", att.Filename, err)
		}
		out = append(out, att)
	}
	return out, nil
}

// AttachmentParts walks the part tree depth first and returns the parts
// that have a filename.
func AttachmentParts(root *gmail.MessagePart) []*gmail.MessagePart {
	var out []*gmail.MessagePart
	var walk func(*gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		if p.Filename != "" {
			out = append(out, p)
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(root)
	return out
}

// MessageDate converts the message's internal date (epoch millis) to UTC.
func MessageDate(msg *gmail.Message) time.Time {
	if msg == nil || msg.InternalDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(msg.InternalDate).UTC()
}

// Header returns the first header with the given name, case-insensitively.
func Header(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// RawBytes decodes a message fetched with FormatRaw.
func RawBytes(msg *gmail.Message) ([]byte, error) {
	if msg == nil || msg.Raw == "" {
		return nil, domain.Invalid("message has no raw content")
	}
	return DecodeBase64URL(msg.Raw)
}

// DecodeBase64URL decodes Gmail's base64url payloads, padded or not.
func DecodeBase64URL(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// LabelFilter returns a predicate keeping messages that carry at least one
// of labels (any label when empty), dropping spam and trash unless
// includeSpamTrash is set. It needs full or metadata messages.
func LabelFilter(labels []string, includeSpamTrash bool) func(*gmail.Message) bool {
	return func(msg *gmail.Message) bool {
		if !hasAnyLabel(msg.LabelIds, labels) {
			return false
		}
		return includeSpamTrash || !isSpamOrTrash(msg.LabelIds)
	}
}

func hasAnyLabel(msgLabels, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if slices.Contains(msgLabels, r) {
			return true
		}
	}
	return false
}

func isSpamOrTrash(labels []string) bool {
	return slices.Contains(labels, LabelSpam) || slices.Contains(labels, LabelTrash)
}

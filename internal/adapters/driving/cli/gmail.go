package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	gm "google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/gmail"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var (
	gmailQuery     string
	gmailLabels    []string
	gmailHas       []string
	gmailIs        []string
	gmailFrom      []string
	gmailAfter     string
	gmailBefore    string
	gmailSpamTrash bool
	gmailFull      bool
	gmailOutDir    string
)

var gmailCmd = &cobra.Command{
	Use:   "gmail",
	Short: "Gmail messages, drafts and attachments",
}

var gmailProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the mailbox profile",
	Args:  cobra.NoArgs,
	RunE:  runGmailProfile,
}

var gmailLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List messages matching a search",
	Long: `List messages matching a Gmail search.

The search is built from --query followed by --has, --is, --from and the
--after/--before dates (YYYY-MM-DD). Several --from values are OR-joined.
Without --full only ids are fetched.`,
	Args: cobra.NoArgs,
	RunE: runGmailLs,
}

var gmailDraftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List drafts",
	Args:  cobra.NoArgs,
	RunE:  runGmailDrafts,
}

var gmailAttachmentsCmd = &cobra.Command{
	Use:   "attachments <message-id>",
	Short: "List or save the attachments of a message",
	Args:  cobra.ExactArgs(1),
	RunE:  runGmailAttachments,
}

func init() {
	f := gmailLsCmd.Flags()
	f.StringVarP(&gmailQuery, "query", "q", "", "raw Gmail search expression")
	f.StringSliceVar(&gmailLabels, "label", nil, "only messages with all these label ids")
	f.StringSliceVar(&gmailHas, "has", nil, "has: terms (attachment, drive, ...)")
	f.StringSliceVar(&gmailIs, "is", nil, "is: terms (unread, starred, ...)")
	f.StringSliceVar(&gmailFrom, "from", nil, "senders, OR-joined")
	f.StringVar(&gmailAfter, "after", "", "only messages after this date (YYYY-MM-DD)")
	f.StringVar(&gmailBefore, "before", "", "only messages before this date (YYYY-MM-DD)")
	f.BoolVar(&gmailSpamTrash, "spam-trash", false, "include spam and trash")
	f.BoolVar(&gmailFull, "full", false, "fetch each message to show date and subject")
	gmailAttachmentsCmd.Flags().StringVarP(&gmailOutDir, "out", "o", "", "save attachments into this directory")

	gmailCmd.AddCommand(gmailProfileCmd, gmailLsCmd, gmailDraftsCmd, gmailAttachmentsCmd)
	rootCmd.AddCommand(gmailCmd)
}

func gmailClient(cmd *cobra.Command) (*gmail.Client, error) {
	c, err := requireClients()
	if err != nil {
		return nil, err
	}
	return c.Gmail(cmd.Context())
}

func runGmailProfile(cmd *cobra.Command, _ []string) error {
	client, err := gmailClient(cmd)
	if err != nil {
		return err
	}
	profile, err := client.Profile(cmd.Context())
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if jsonOutput {
		return newRenderer(cmd).json(profile)
	}
	cmd.Printf("Email:     %s\n", profile.EmailAddress)
	cmd.Printf("Messages:  %d\n", profile.MessagesTotal)
	cmd.Printf("Threads:   %d\n", profile.ThreadsTotal)
	return nil
}

// gmailListQuery builds the listing query from the ls flags.
func gmailListQuery() (gmail.ListQuery, error) {
	q := gmail.Query{Raw: gmailQuery, Has: gmailHas, Is: gmailIs}
	if len(gmailFrom) > 0 {
		q.Terms = append(q.Terms, gmail.Term{Key: "from", Values: gmailFrom})
	}
	var err error
	if q.After, err = parseDate("--after", gmailAfter); err != nil {
		return gmail.ListQuery{}, err
	}
	if q.Before, err = parseDate("--before", gmailBefore); err != nil {
		return gmail.ListQuery{}, err
	}
	return gmail.ListQuery{Query: q, LabelIDs: gmailLabels, IncludeSpamTrash: gmailSpamTrash}, nil
}

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, domain.Invalid("%s must be YYYY-MM-DD", flag)
	}
	return t, nil
}

func runGmailLs(cmd *cobra.Command, _ []string) error {
	q, err := gmailListQuery()
	if err != nil {
		return err
	}
	client, err := gmailClient(cmd)
	if err != nil {
		return err
	}

	opts := listOptions[*gm.Message]()
	if !gmailFull {
		messages, err := client.ListMessages(q, opts).Collect(cmd.Context())
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		return list(cmd, messages, []string{"ID", "THREAD"}, func(m *gm.Message) []string {
			return []string{m.Id, m.ThreadId}
		})
	}

	messages, err := client.FullMessages(q, opts).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	return list(cmd, messages, []string{"ID", "DATE", "FROM", "SUBJECT"}, func(m *gm.Message) []string {
		return []string{
			m.Id,
			gmail.MessageDate(m).Format(time.RFC3339),
			gmail.Header(m, "From"),
			gmail.Header(m, "Subject"),
		}
	})
}

func runGmailDrafts(cmd *cobra.Command, _ []string) error {
	client, err := gmailClient(cmd)
	if err != nil {
		return err
	}
	drafts, err := client.ListDrafts(gmail.ListQuery{}, listOptions[*gm.Draft]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}
	return list(cmd, drafts, []string{"DRAFT", "MESSAGE"}, func(d *gm.Draft) []string {
		msg := ""
		if d.Message != nil {
			msg = d.Message.Id
		}
		return []string{d.Id, msg}
	})
}

func runGmailAttachments(cmd *cobra.Command, args []string) error {
	client, err := gmailClient(cmd)
	if err != nil {
		return err
	}
	attachments, err := client.Attachments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get attachments: %w", err)
	}

	if gmailOutDir != "" {
		if err := os.MkdirAll(gmailOutDir, 0o755); err != nil {
			return err
		}
		r := newRenderer(cmd)
		for _, a := range attachments {
			path := filepath.Join(gmailOutDir, attachmentFileName(a))
			if err := os.WriteFile(path, a.Data, 0o644); err != nil {
				return fmt.Errorf("save %s: %w", a.Filename, err)
			}
			r.success("Saved %s (%s)", path, google.Size(uint64(len(a.Data))))
		}
		return nil
	}

	return list(cmd, attachments, []string{"PART", "FILENAME", "TYPE", "SIZE", "DATE"}, func(a gmail.Attachment) []string {
		return []string{a.PartID, a.Filename, a.MimeType, strconv.Itoa(len(a.Data)), a.Date.Format(time.RFC3339)}
	})
}

// attachmentFileName keeps only the base name so a crafted filename cannot
// escape the output directory.
func attachmentFileName(a gmail.Attachment) string {
	name := filepath.Base(filepath.Clean("/" + a.Filename))
	if name == "/" || name == "." || name == "" {
		return a.PartID + ".bin"
	}
	return name
}

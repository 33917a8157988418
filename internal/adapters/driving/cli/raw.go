package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var (
	rawService    string
	rawItemsKey   string
	rawTokenKey   string
	rawTokenParam string
	rawParams     []string
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Call Google REST collections directly",
}

var rawListCmd = &cobra.Command{
	Use:   "list <url>",
	Short: "List any paged REST collection as JSON records",
	Long: `List any paged Google REST collection, following continuation tokens.

The URL is either absolute or relative to the service's API endpoint, e.g.

  gcpkit raw list --service storage --items items b
  gcpkit raw list --service compute --items items projects/my-proj/zones

Records are printed as a JSON array.`,
	Args: cobra.ExactArgs(1),
	RunE: runRawList,
}

func init() {
	f := rawListCmd.Flags()
	f.StringVar(&rawService, "service", "storage", "bigquery, storage, drive, gmail, compute or dataproc")
	f.StringVar(&rawItemsKey, "items", "", "response field holding the items")
	f.StringVar(&rawTokenKey, "token-key", domain.DefaultTokenKey, "response field holding the next page token")
	f.StringVar(&rawTokenParam, "token-param", "", "query parameter carrying the page token (default pageToken)")
	f.StringArrayVar(&rawParams, "param", nil, "query parameter key=value, repeatable")
	_ = rawListCmd.MarkFlagRequired("items")

	rawCmd.AddCommand(rawListCmd)
	rootCmd.AddCommand(rawCmd)
}

// parseParams turns key=value pairs into query parameters.
func parseParams(pairs []string) (map[string][]string, error) {
	params := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, domain.Invalid("parameter %q must be key=value", p)
		}
		params[k] = append(params[k], v)
	}
	return params, nil
}

func runRawList(cmd *cobra.Command, args []string) error {
	if rawLister == nil {
		return errors.New("raw lister not configured")
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	records, err := rawLister.ListRaw(cmd.Context(), domain.RawListRequest{
		Service:    rawService,
		URL:        args[0],
		Params:     params,
		Keys:       domain.PageKeys{Items: rawItemsKey, Token: rawTokenKey},
		TokenParam: rawTokenParam,
		MaxResults: maxResults,
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", args[0], err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return newRenderer(cmd).json(records)
}

package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Elapsed formats d as "M Minutes S Seconds". Negative durations count as zero.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d Minutes %d Seconds", secs/60, secs%60)
}

// Size formats a byte count the way transfer and job summaries show it.
func Size(n uint64) string {
	return humanize.Bytes(n)
}

// Title upper-cases the first letter of each space separated word and
// lower-cases the rest.
func Title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// TransferSummary describes a finished upload or download.
type TransferSummary struct {
	// Service prefixes the summary, e.g. "GCS" or "Drive".
	Service string

	// Description is the action, e.g. "downloaded".
	Description string

	// Target names the transferred object.
	Target string

	// Bytes is the transferred size. Negative means unknown.
	Bytes int64

	// Elapsed is the wall time the transfer took.
	Elapsed time.Duration
}

// String renders e.g. "[GCS] Downloaded gs://b/o 1.2 MB (0 Minutes 3 Seconds)".
func (s TransferSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s ", s.Service, Title(s.Description), s.Target)
	if s.Bytes >= 0 {
		b.WriteString(Size(uint64(s.Bytes)))
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "(%s)", Elapsed(s.Elapsed))
	return b.String()
}

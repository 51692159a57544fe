package values

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// epochLow/epochHigh bound what "looks like a unix-epoch-seconds
// timestamp" for the purposes of literalDisplay's calendar hint: roughly
// the year 2001 through 2100, wide enough to catch realistic literals
// without flagging small loop counters or array indices.
const (
	epochLow  = 1_000_000_000
	epochHigh = 4_102_444_800
)

// FormatLiteralWithEpochHint renders a numeric literal's source text,
// appending a parenthesised calendar reading when the value falls in a
// plausible unix-epoch-seconds range — the "date-ish formatting path"
// the pattern-match compiler's literal normalisation diagnostics use to
// make a duplicate-literal report legible when the literal is plainly a
// timestamp rather than an arbitrary number.
func FormatLiteralWithEpochHint(text string, n int64) string {
	if n < epochLow || n > epochHigh {
		return text
	}
	t := time.Unix(n, 0).UTC()
	return fmt.Sprintf("%s (%s)", text, strftime.Format("%Y-%m-%d %H:%M:%S UTC", t))
}

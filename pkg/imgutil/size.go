package imgutil

import "github.com/dustin/go-humanize"

// FormatSize renders a byte count for logs and summaries. Negative values
// (a variant that grew) keep their sign.
func FormatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

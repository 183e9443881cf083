package script

import (
	"strings"
)

// SplitBatches splits a script body on lines that contain only "go"
// (case-insensitive, surrounding whitespace ignored). Empty batches are
// dropped.
func SplitBatches(body string) []string {
	var (
		batches []string
		cur     strings.Builder
	)
	flush := func() {
		if b := strings.TrimSpace(cur.String()); b != "" {
			batches = append(batches, b)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if strings.EqualFold(strings.TrimSpace(line), "go") {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return batches
}

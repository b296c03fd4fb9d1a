package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/robinvdvleuten/tally/output"
)

// slowThreshold marks operations that are highlighted in reports.
const slowThreshold = 100 * time.Millisecond

// formatTimingTree writes a timer and its children:
//
//	balance: 125ms
//	├─ store.load 2 years: 85ms
//	│  ├─ parser.year 2020.ledger: 45ms
//	│  └─ parser.year 2021.ledger: 40ms
//	└─ query.run 3 specs: 40ms
func formatTimingTree(w io.Writer, root *timerNode, styles *output.Styles) {
	timing := formatDuration(root.duration())
	if styles != nil {
		_, _ = fmt.Fprintf(w, "%s: %s\n", styles.Keyword(root.name), timing)
	} else {
		_, _ = fmt.Fprintf(w, "%s: %s\n", root.name, timing)
	}

	for i, child := range root.children {
		formatNode(w, child, "", i == len(root.children)-1, styles)
	}
}

func formatNode(w io.Writer, node *timerNode, prefix string, isLast bool, styles *output.Styles) {
	branch, extension := "├─ ", "│  "
	if isLast {
		branch, extension = "└─ ", "   "
	}

	d := node.duration()
	timing := formatDuration(d)
	if styles != nil {
		if d >= slowThreshold {
			timing = styles.Warning(timing)
		} else {
			timing = styles.Dim(timing)
		}
		_, _ = fmt.Fprintf(w, "%s%s: %s\n", styles.Dim(prefix+branch), node.name, timing)
	} else {
		_, _ = fmt.Fprintf(w, "%s%s%s: %s\n", prefix, branch, node.name, timing)
	}

	for i, child := range node.children {
		formatNode(w, child, prefix+extension, i == len(node.children)-1, styles)
	}
}

// formatDuration shows milliseconds below one second and seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}

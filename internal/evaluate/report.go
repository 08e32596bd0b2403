package evaluate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteSummary prints one line per strategy pair.
func (r *Report) WriteSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNKING\tSEARCH\tCHUNKS\tAVG HITS\tAVG LATENCY\tRECALL")
	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%s\t%s\n",
			s.Chunking, s.Search, s.Chunks, s.AvgHits, s.AvgLatency.Round(time.Microsecond), formatRecall(s.Recall))
	}
	return tw.Flush()
}

// WriteDetails prints one line per query.
func (r *Report) WriteDetails(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNKING\tSEARCH\tQUERY\tHITS\tDOCUMENTS\tRECALL")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			row.Chunking, row.Search, row.Query, row.Hits, strings.Join(row.Documents, ","), formatRecall(row.Recall))
	}
	return tw.Flush()
}

func formatRecall(r float64) string {
	if r < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", r)
}

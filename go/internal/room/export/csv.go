package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mcdev12/estimate/go/internal/room"
)

var header = []string{"Task", "Final Estimate", "Average", "Median", "Votes", "Distribution"}

// WriteCSV writes one row per task with its final estimate, vote statistics
// and distribution. Votes are listed as name=value in name order.
func WriteCSV(w io.Writer, tasks []room.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, task := range tasks {
		if err := cw.Write(taskRow(task)); err != nil {
			return fmt.Errorf("failed to write task %s: %w", task.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func taskRow(task room.Task) []string {
	stats := room.CalculateStats(task.Votes)
	dist := room.FormatDistribution(task.Votes)

	final := ""
	if task.FinalEstimate != nil {
		final = *task.FinalEstimate
	}

	return []string{
		task.Title,
		final,
		formatNumber(stats.Average),
		formatNumber(stats.Median),
		formatVotes(task.Votes),
		formatDistribution(dist),
	}
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatVotes(votes map[string]string) string {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + votes[name]
	}
	return strings.Join(parts, "; ")
}

func formatDistribution(dist map[string]int) string {
	keys := room.DeckOrder(dist)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, dist[k])
	}
	return strings.Join(parts, " ")
}

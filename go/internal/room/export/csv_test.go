package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/estimate/go/internal/room"
)

func TestWriteCSV(t *testing.T) {
	final := "8"
	tasks := []room.Task{
		{
			ID:            "t1",
			Title:         "Login, with OAuth",
			Votes:         map[string]string{"Bob": "8", "Ann": "5", "Cleo": room.CardUnknown},
			FinalEstimate: &final,
		},
		{
			ID:    "t2",
			Title: "Coffee",
			Votes: map[string]string{"Ann": room.CardBreak, "Bob": room.CardUnknown},
		},
		{
			ID:    "t3",
			Title: "Backlog",
			Votes: map[string]string{},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tasks))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"Login, with OAuth", "8", "6.5", "6.5", "Ann=5; Bob=8; Cleo=?", "5:1 8:1 ?:1"}, records[1])
	assert.Equal(t, []string{"Coffee", "", "", "", "Ann=☕; Bob=?", "?:1 ☕:1"}, records[2])
	assert.Equal(t, []string{"Backlog", "", "", "", "", ""}, records[3])
}

func TestWriteCSV_NoTasks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	assert.Equal(t, "Task,Final Estimate,Average,Median,Votes,Distribution\n", buf.String())
}

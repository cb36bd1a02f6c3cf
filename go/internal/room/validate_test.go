package room

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: "Ann", want: "Ann", wantOK: true},
		{raw: "  Ann  ", want: "Ann", wantOK: true},
		{raw: "<script>Ann", want: "scriptAnn", wantOK: true},
		{raw: "Zoë", want: "Zoë", wantOK: true},
		{raw: strings.Repeat("é", MaxNameLength), want: strings.Repeat("é", MaxNameLength), wantOK: true},
		{raw: strings.Repeat("é", MaxNameLength+1)},
		{raw: ""},
		{raw: "   "},
		{raw: "<<>>"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := SanitizeName(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeOptionalFields(t *testing.T) {
	got, ok := SanitizeDescription("")
	assert.True(t, ok)
	assert.Empty(t, got)

	got, ok = SanitizeEstimate(" <13> ")
	assert.True(t, ok)
	assert.Equal(t, "13", got)

	_, ok = SanitizeEstimate(strings.Repeat("1", MaxEstimateLength+1))
	assert.False(t, ok)

	_, ok = SanitizeTitle(strings.Repeat("t", MaxTitleLength))
	assert.True(t, ok)
}

func TestValidVote(t *testing.T) {
	for _, v := range Deck {
		assert.True(t, ValidVote(v), v)
	}
	for _, v := range []string{"", "4", "100", "voted", "5 ", "?? "} {
		assert.False(t, ValidVote(v), v)
	}
}

func TestBounds(t *testing.T) {
	assert.True(t, ValidDuration(0))
	assert.True(t, ValidDuration(1))
	assert.True(t, ValidDuration(MaxDurationSec))
	assert.False(t, ValidDuration(-5))
	assert.False(t, ValidDuration(MaxDurationSec+1))

	assert.True(t, ValidExtension(MinExtensionSec))
	assert.True(t, ValidExtension(MaxExtensionSec))
	assert.False(t, ValidExtension(0))
	assert.False(t, ValidExtension(MaxExtensionSec+1))

	assert.True(t, ValidRole(RoleObserver))
	assert.False(t, ValidRole(""))
	assert.True(t, ValidMode(ModeClosed))
	assert.False(t, ValidMode("private"))
}

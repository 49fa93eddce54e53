package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInstant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-01-05T09:00:00+00:00", "2025-01-05T09:00:00+00:00"},
		{"2025-01-05T09:00:00Z", "2025-01-05T09:00:00+00:00"},
		{"2025-01-05T09:00:00+08:00", "2025-01-05T09:00:00+08:00"},
		{"2025-01-05 09:00:00+08:00", "2025-01-05T09:00:00+08:00"},
		{"2025-01-05T09:00:00", "2025-01-05T09:00:00"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeInstant(tt.in))
		})
	}
}

func TestEventKey_IgnoresOffsetSpelling(t *testing.T) {
	a := Event{Title: "Standup", Start: "2025-01-05T09:00:00Z", End: "2025-01-05T09:15:00Z"}
	b := Event{Title: "Standup", Start: "2025-01-05T09:00:00+00:00", End: "2025-01-05T09:15:00+00:00"}
	assert.Equal(t, a.Key(), b.Key())

	c := b
	c.End = "2025-01-05T09:30:00+00:00"
	assert.NotEqual(t, b.Key(), c.Key())
}

func TestCalendarSelection_JSON(t *testing.T) {
	out, err := json.Marshal(CalendarSelection(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `"all"`, string(out))

	out, err = json.Marshal(CalendarSelection{"Work", "家庭"})
	require.NoError(t, err)
	assert.JSONEq(t, `["Work","家庭"]`, string(out))

	var sel CalendarSelection
	require.NoError(t, json.Unmarshal([]byte(`"all"`), &sel))
	assert.Empty(t, sel)

	require.NoError(t, json.Unmarshal([]byte(`["Work"]`), &sel))
	assert.Equal(t, CalendarSelection{"Work"}, sel)
}

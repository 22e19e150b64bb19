package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 9}, d)
	assert.Equal(t, "2024-03-09", d.String())

	_, err = ParseDate("2024-03-09T10:00:00Z")
	assert.Error(t, err)

	_, err = ParseDate("09/03/2024")
	assert.Error(t, err)
}

func TestDate_Compare(t *testing.T) {
	a := NewDate(2024, time.January, 31)
	b := NewDate(2024, time.February, 1)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(NewDate(2024, time.January, 31)))
	assert.Equal(t, b, a.AddDays(1))
	assert.Equal(t, 0, a.Compare(a))
}

func TestDate_NormalizesOverflow(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.March, 1), NewDate(2024, time.February, 30))
}

func TestDate_JSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Date
	}{
		{name: "iso string", input: `"2024-05-02"`, want: NewDate(2024, time.May, 2)},
		{name: "array", input: `[2024,5,2]`, want: NewDate(2024, time.May, 2)},
		{name: "null", input: `null`, want: Date{}},
		{name: "empty string", input: `""`, want: Date{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, json.Unmarshal([]byte(tt.input), &d))
			assert.Equal(t, tt.want, d)
		})
	}

	out, err := json.Marshal(NewDate(2024, time.May, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-02"`, string(out))

	out, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`[2024,5]`), &d))
}

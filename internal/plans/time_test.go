package plans

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeBounds(t *testing.T) {
	_, err := NewTime(0, 0)
	assert.NoError(t, err)

	_, err = NewTime(23, 59)
	assert.NoError(t, err)

	for _, tc := range []struct{ hour, minute int }{
		{24, 0},
		{-1, 0},
		{0, 60},
		{0, -1},
	} {
		_, err := NewTime(tc.hour, tc.minute)
		assert.Error(t, err, "NewTime(%d, %d)", tc.hour, tc.minute)
	}
}

func TestTimeBefore(t *testing.T) {
	early := Time{Hour: 10, Minute: 30}
	late := Time{Hour: 11, Minute: 0}

	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.False(t, early.Before(early))
}

func TestTimeJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Time{Hour: 9, Minute: 5})
	require.NoError(t, err)
	assert.Equal(t, `"09:05"`, string(data))

	var parsed Time
	require.NoError(t, json.Unmarshal([]byte(`"14:45"`), &parsed))
	assert.Equal(t, Time{Hour: 14, Minute: 45}, parsed)
}

func TestTimeUnmarshalRejectsBadInput(t *testing.T) {
	for _, input := range []string{`"25:00"`, `"10:75"`, `"noon"`, `42`} {
		var parsed Time
		assert.Error(t, json.Unmarshal([]byte(input), &parsed), "input %s", input)
	}
}

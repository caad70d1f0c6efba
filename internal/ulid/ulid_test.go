package ulid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	assert.False(t, id.IsZero(), "Generated ULID should not be zero")
	assert.Less(t, time.Since(id.Time()).Seconds(), 1.0, "ULID timestamp should be close to now")
}

func TestDomainIDGeneration(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"log entry", LogEntryID, PrefixLogEntry},
		{"run", RunID, PrefixRun},
		{"setting", SettingID, PrefixSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			assert.True(t, strings.HasPrefix(id, tt.prefix+PrefixSeparator))
			assert.True(t, Validate(id))

			parsed, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, parsed.Prefix())
			assert.Equal(t, id, parsed.String())
		})
	}
}

func TestParseAndValidate(t *testing.T) {
	raw := Generate()
	parsed, err := Parse(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw, parsed)
	assert.Empty(t, parsed.Prefix())

	_, err = Parse("log-invalid")
	assert.Error(t, err)

	assert.False(t, Validate(""))
	assert.False(t, Validate("invalid"))
}

func TestMonotonicOrdering(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := NewWithTime(at)
	for i := 0; i < 100; i++ {
		next := NewWithTime(at)
		require.Equal(t, 1, next.Compare(prev), "IDs within one millisecond must still increase")
		prev = next
	}

	// String ordering matches creation ordering, which the history table relies on
	a := LogEntryID()
	b := LogEntryID()
	assert.Less(t, a, b)
}

func TestDatabaseSerialization(t *testing.T) {
	id := GenerateWithPrefix(PrefixLogEntry)

	value, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), value)

	var fromString ULID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	var fromBytes ULID
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	assert.Equal(t, id, fromBytes)

	var fromNil ULID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	var bad ULID
	assert.Error(t, bad.Scan(42))
}

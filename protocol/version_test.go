package protocol

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		text     string
		expected Version
	}{
		{"1.10.3", Version{1, 10, 3}},
		{"0.7.0-E", Version{0, 7, 0}},
		{"1.13.4-E-SNAPSHOT", Version{1, 13, 4}},
		{"255.255.255", Version{255, 255, 255}},
		{"007.08.09", Version{7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, err := ParseVersion(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestParseVersion_RangeOverflow(t *testing.T) {
	tests := []struct {
		text      string
		component string
	}{
		{"256.0.0", "major"},
		{"1.300.0", "minor"},
		{"1.2.99999999999999999999", "micro"},
		{"1.2.256-E", "micro"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, err := ParseVersion(tt.text)

			var re *RangeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.component, re.Component)
			assert.ErrorIs(t, err, strconv.ErrRange)

			// never a partially populated version
			assert.Equal(t, Version{}, v)
		})
	}
}

func TestParseVersion_Malformed(t *testing.T) {
	texts := []string{
		"",
		"1",
		"1.2",
		"1.2.",
		"1..3",
		".2.3",
		"1.2.3.4",
		"a.b.c",
		"1.2.3beta",
		"+1.2.3",
		" 1.2.3",
		"UNKNOWN",
		"-E",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			v, err := ParseVersion(text)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, Version{}, v)
		})
	}
}

func TestVersion_String(t *testing.T) {
	assert.Equal(t, "1.10.3", Version{1, 10, 3}.String())
	assert.Equal(t, "0.0.0", Version{}.String())
}

func TestVersion_Compare(t *testing.T) {
	assert.Equal(t, 0, Version{1, 10, 3}.Compare(Version{1, 10, 3}))
	assert.Equal(t, -1, Version{1, 10, 3}.Compare(Version{1, 11, 0}))
	assert.Equal(t, 1, Version{2, 0, 0}.Compare(Version{1, 255, 255}))
	assert.Equal(t, -1, Version{1, 10, 3}.Compare(Version{1, 10, 4}))
}

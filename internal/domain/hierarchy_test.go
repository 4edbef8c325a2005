package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseCode(t *testing.T) {
	ords, err := ParseCode("1.2.7")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 7}, ords)

	for _, bad := range []string{"", ".", "1.", ".1", "1..2", "0", "1.0", "-1", "a.b", "01"} {
		_, err := ParseCode(bad)
		assert.ErrorIs(t, err, ErrMalformedCode, bad)
	}
}

func TestChildCodeAndNextOrdinal(t *testing.T) {
	assert.Equal(t, "3", ChildCode("", 3))
	assert.Equal(t, "1.2.4", ChildCode("1.2", 4))
	assert.Equal(t, 1, NextOrdinal(nil))
	assert.Equal(t, 8, NextOrdinal([]string{"1.2", "1.7", "1.3"}))
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("1.3.5", "1.3"))
	assert.True(t, IsWithin("1.3", "1.3"))
	// "1.30" is not inside "1.3"
	assert.False(t, IsWithin("1.30", "1.3"))
	assert.False(t, IsWithin("1.3", ""))
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(""))
	assert.Equal(t, 1, Depth("4"))
	assert.Equal(t, 3, Depth("4.1.9"))
}

func TestChildCodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ords := rapid.SliceOfN(rapid.IntRange(1, 999), 1, 6).Draw(t, "ords")
		code := ""
		for _, o := range ords {
			code = ChildCode(code, o)
		}
		got, err := ParseCode(code)
		if err != nil {
			t.Fatalf("ParseCode(%q): %v", code, err)
		}
		if len(got) != len(ords) {
			t.Fatalf("got %v, want %v", got, ords)
		}
		for i := range ords {
			if got[i] != ords[i] {
				t.Fatalf("got %v, want %v", got, ords)
			}
		}
		if LastOrdinal(code) != ords[len(ords)-1] {
			t.Fatalf("LastOrdinal(%q) = %d", code, LastOrdinal(code))
		}
	})
}

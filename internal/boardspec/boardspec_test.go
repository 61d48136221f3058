package boardspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownDifficulties(t *testing.T) {
	cases := map[string]Dimensions{
		"beginner":             {Width: 9, Height: 9, Mines: 10},
		"intermediate":         {Width: 20, Height: 20, Mines: 50},
		"intermediate-classic": {Width: 16, Height: 16, Mines: 40},
		"expert":               {Width: 20, Height: 20, Mines: 99},
		"expert-classic":       {Width: 30, Height: 16, Mines: 99},
	}
	for difficulty, want := range cases {
		got, err := Lookup(difficulty)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLookupEmptyDefaultsToBeginner(t *testing.T) {
	got, err := Lookup("")
	require.NoError(t, err)
	want, _ := Lookup(DefaultDifficulty)
	assert.Equal(t, want, got)
}

func TestLookupUnknownDifficulty(t *testing.T) {
	_, err := Lookup("nightmare")
	require.Error(t, err)
	assert.ErrorAs(t, err, new(ErrUnknownDifficulty))
}

func TestGenerateProducesUniqueSeeds(t *testing.T) {
	b1, err := Generate("beginner")
	require.NoError(t, err)
	b2, err := Generate("beginner")
	require.NoError(t, err)
	assert.NotEqual(t, b1.Seed, b2.Seed)
}

func TestSafeStartIsDeterministicForAGivenSeed(t *testing.T) {
	x1, y1 := SafeStart(9, 9, "fixed-seed")
	x2, y2 := SafeStart(9, 9, "fixed-seed")
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
}

func TestSafeStartStaysInteriorWhenBoardHasMargin(t *testing.T) {
	for _, seed := range []string{"a", "b", "c", "some-seed", "another-one"} {
		x, y := SafeStart(9, 9, seed)
		assert.GreaterOrEqual(t, x, 1)
		assert.LessOrEqual(t, x, 7)
		assert.GreaterOrEqual(t, y, 1)
		assert.LessOrEqual(t, y, 7)
	}
}

func TestSafeStartFallsBackOnTinyBoards(t *testing.T) {
	x, y := SafeStart(1, 1, "anything")
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
}

func TestInBounds(t *testing.T) {
	assert.True(t, InBounds(9, 9, 0, 0))
	assert.True(t, InBounds(9, 9, 8, 8))
	assert.False(t, InBounds(9, 9, 9, 0))
	assert.False(t, InBounds(9, 9, -1, 0))
}

func TestEnvelopeRoundTripsBothSafeStartKeys(t *testing.T) {
	b, err := Generate("beginner")
	require.NoError(t, err)
	env := NewEnvelope(b)

	data, err := env.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"safe_start"`)
	assert.Contains(t, string(data), `"safeStart"`)

	var decoded Envelope
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, env.SafeStart, decoded.SafeStart)

	// A client sending only the camelCase form must also round-trip.
	camelOnly := []byte(`{"width":9,"height":9,"mines":10,"seed":"x","difficulty":"beginner","safeStart":{"x":3,"y":4}}`)
	var fromCamel Envelope
	require.NoError(t, fromCamel.UnmarshalJSON(camelOnly))
	assert.Equal(t, Cell{X: 3, Y: 4}, fromCamel.SafeStart)
}

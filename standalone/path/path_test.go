package path

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spider/standalone"
)

func TestRead(t *testing.T) {
	in := `# square
0,0
1.5, 2
-1,-2,-0.5
`
	route, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []standalone.Position{{}, {X: 1.5, Y: 2}, {X: -1, Y: -2, Z: -0.5}}, route)
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"one field":   "1\n",
		"four fields": "1,2,3,4\n",
		"not a float": "1,y\n",
		"nan":         "NaN,0\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestNormalize(t *testing.T) {
	route := []standalone.Position{{X: 2, Y: 4}, {X: 6, Y: 0}, {X: -8, Y: 2}}

	got, err := Normalize(route, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []standalone.Position{{}, {X: 0.5, Y: 1}, {X: 1.5}, {X: -2, Y: 0.5}}, got)

	centered, err := Normalize(route, 2, true)
	require.NoError(t, err)
	assert.Equal(t, standalone.Origin, centered[0])
	lo, hi := Bounds(centered[1:])
	assert.InDelta(t, 0, lo.X+hi.X, 1e-12)
	assert.InDelta(t, 0, lo.Y+hi.Y, 1e-12)
	assert.InDelta(t, 3.5, hi.X-lo.X, 1e-12)

	_, err = Normalize(nil, 1, false)
	assert.ErrorIs(t, err, ErrEmptyRoute)
	_, err = Normalize([]standalone.Position{{}, {}}, 1, false)
	assert.ErrorIs(t, err, ErrEmptyRoute)
}

func TestDeltasAndLength(t *testing.T) {
	route := []standalone.Position{{}, {X: 3}, {X: 3, Y: 4}, {Z: 0}}

	deltas := Deltas(route)
	assert.Equal(t, []standalone.Position{{X: 3}, {Y: 4}, {X: -3, Y: -4}}, deltas)

	var sum standalone.Position
	for _, d := range deltas {
		sum = sum.Add(d)
	}
	assert.Equal(t, route[len(route)-1].Sub(route[0]), sum)

	assert.InDelta(t, 12, Length(route), 1e-12)
	assert.Nil(t, Deltas(route[:1]))
	assert.Zero(t, Length(nil))
}

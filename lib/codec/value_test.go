package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Score int
	Tags  []string
}

// testCodecs is a map of codec name to codec
var testCodecs = map[string]ValueCodec{
	"GOB":  Gob(),
	"JSON": JSON(),
}

func TestValueCodecs(t *testing.T) {
	for name, c := range testCodecs {
		t.Run(name, func(t *testing.T) {
			in := record{Name: "alice", Score: 7, Tags: []string{"a", "b"}}

			b1, err := c.Encode(in)
			require.NoError(t, err)
			b2, err := c.Encode(in)
			require.NoError(t, err)
			assert.Equal(t, b1, b2, "encoding must be deterministic")

			var out record
			require.NoError(t, c.Decode(b1, &out))
			assert.Equal(t, in, out)

			zero, err := c.Encode(record{})
			require.NoError(t, err)
			assert.NotEqual(t, b1, zero)

			assert.Error(t, c.Decode([]byte("not encoded"), &out))
		})
	}
}

func TestJSONMapsAreDeterministic(t *testing.T) {
	m := map[string]int{}
	for _, k := range []string{"z", "a", "m", "q", "b", "y", "c"} {
		m[k] = len(k)
	}

	first, err := JSON().Encode(m)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := JSON().Encode(m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, `{"a":1,"b":1,"c":1,"m":1,"q":1,"y":1,"z":1}`, string(first))
}

func TestByName(t *testing.T) {
	c, err := ByName("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, "gob", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}

package axes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeSortsKeys(t *testing.T) {
	out, err := Serialize(Map{"z": 3, "time": 1, "channel": "GFP"})
	require.NoError(t, err)
	assert.Equal(t, `{"channel":"GFP","time":1,"z":3}`, string(out))
}

func TestSerializeInvariantUnderInsertionOrder(t *testing.T) {
	a := Map{}
	a["b"] = 2
	a["a"] = 1
	a["c"] = "x"

	b := Map{}
	b["c"] = "x"
	b["a"] = 1
	b["b"] = 2

	sa, err := Serialize(a)
	require.NoError(t, err)
	sb, err := Serialize(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Map
	}{
		{"empty", Map{}},
		{"ints", Map{"time": 0, "z": -12}},
		{"mixed", Map{"channel": "DAPI", "time": 42}},
		{"negative tile", Map{RowAxis: -3, ColumnAxis: -1, "z": 0}},
		{"escaped string", Map{"channel": `a"b\c`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(tt.m)
			require.NoError(t, err)
			back, err := Deserialize(data)
			require.NoError(t, err)
			assert.Equal(t, tt.m, back)
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	v, err := NormalizeValue("t", int64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = NormalizeValue("t", int64(1)<<33)
	assert.Error(t, err)

	_, err = NormalizeValue("t", 3.5)
	assert.Error(t, err)
}

func TestDeserializeRejectsNonScalar(t *testing.T) {
	_, err := Deserialize([]byte(`{"a":[1,2]}`))
	assert.Error(t, err)

	_, err = Deserialize([]byte(`{"a":1.5}`))
	assert.Error(t, err)
}

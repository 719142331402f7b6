package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	values := []any{
		"hello",
		float64(42),
		3.5,
		true,
		false,
		[]any{"a", float64(1), nil},
		map[string]any{"test": true, "nested": map[string]any{"value": float64(42)}},
		map[string]any{"test": "special chars: ?&="},
		map[string]any{"html": "<b>&</b>"},
		[]any{},
		map[string]any{},
	}

	for _, v := range values {
		text := Serialize(v)
		got, ok := Deserialize(text)
		require.True(t, ok, "Deserialize(%q)", text)
		assert.Equal(t, v, got)
	}
}

func TestSerialize(t *testing.T) {
	assert.Equal(t, "", Serialize(nil))
	assert.Equal(t, `{"x":1}`, Serialize(map[string]int{"x": 1}))
	assert.Equal(t, `"a"`, Serialize("a"))
	assert.Equal(t, `"<b>"`, Serialize("<b>"), "HTML characters are not escaped")
	assert.Equal(t, "", Serialize(math.NaN()))
	assert.Equal(t, "", Serialize(make(chan int)))
}

func TestDeserializeFailure(t *testing.T) {
	for _, text := range []string{"not json", "", "{", "{'x':1}", "invalid json"} {
		v, ok := Deserialize(text)
		assert.False(t, ok, "Deserialize(%q)", text)
		assert.Nil(t, v)
	}
}

func TestDeserializeNull(t *testing.T) {
	v, ok := Deserialize("null")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDeserializeInto(t *testing.T) {
	type filter struct {
		Status string `json:"status"`
		Max    int    `json:"max"`
	}

	got, ok := DeserializeInto[filter](`{"status":"active","max":10}`)
	require.True(t, ok)
	assert.Equal(t, filter{Status: "active", Max: 10}, got)

	_, ok = DeserializeInto[filter]("nope")
	assert.False(t, ok)
}

func TestToArray(t *testing.T) {
	assert.Equal(t, []any{}, ToArray(nil))
	assert.Equal(t, []any{"test"}, ToArray("test"))
	assert.Equal(t, []any{"a", "b"}, ToArray([]string{"a", "b"}))
	assert.Equal(t, []any{1, 2}, ToArray([2]int{1, 2}))
	assert.Equal(t, []any{}, ToArray([]string(nil)))
	assert.Equal(t, []any{[]byte("raw")}, ToArray([]byte("raw")))

	list := []any{"x", 1}
	got := ToArray(list)
	assert.Equal(t, list, got)
	got[0] = "changed"
	assert.Equal(t, "changed", list[0], "a []any is returned unchanged, not copied")
}

type stringerValue struct{}

func (stringerValue) String() string { return "custom" }

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"plain", "plain"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(9), "9"},
		{1.5, "1.5"},
		{float32(0.25), "0.25"},
		{true, "true"},
		{[]byte("bytes"), "bytes"},
		{stringerValue{}, "custom"},
		{[]int{1, 2}, "[1 2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stringify(tt.in), "Stringify(%#v)", tt.in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(map[string]any{"test": true}, map[string]any{"test": true}))
	assert.True(t, Equal(map[string]any{"a": 1.0, "b": 2.0}, map[string]any{"b": 2, "a": 1}))
	assert.True(t, Equal(float64(1), 1))
	assert.False(t, Equal("1", 1))
	assert.False(t, Equal(map[string]any{"x": 1}, map[string]any{"x": 2}))
	assert.True(t, Equal(nil, nil))
}

func TestJSONParser(t *testing.T) {
	text := JSON.Serialize([]any{"a"})
	assert.Equal(t, `["a"]`, text)

	v, ok := JSON.Parse(text)
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, v)
}

func TestBase64JSONParser(t *testing.T) {
	// {"cat":"electronics","max_price":1000}
	const encoded = "eyJjYXQiOiJlbGVjdHJvbmljcyIsIm1heF9wcmljZSI6MTAwMH0"

	v, ok := Base64JSON.Parse(encoded)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"cat": "electronics", "max_price": float64(1000)}, v)

	assert.Equal(t, encoded, Base64JSON.Serialize(map[string]any{"cat": "electronics", "max_price": 1000}))
	assert.Equal(t, "", Base64JSON.Serialize(nil))

	_, ok = Base64JSON.Parse("!!!")
	assert.False(t, ok)
}

type evenOnly struct{ Parser }

func (evenOnly) Validate(v any) bool {
	f, ok := v.(float64)
	return ok && int(f)%2 == 0
}

func TestDecodeAppliesValidator(t *testing.T) {
	p := evenOnly{JSON}

	v, ok := Decode(p, "4")
	require.True(t, ok)
	assert.Equal(t, float64(4), v)

	_, ok = Decode(p, "3")
	assert.False(t, ok)

	_, ok = Decode(p, "x")
	assert.False(t, ok)
}

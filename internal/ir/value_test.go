package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual_NoWidening(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Double(1)), "Int and Double must never compare equal")
	assert.True(t, Equal(Double(2.5), Double(2.5)))
	assert.True(t, Equal(Double(math.NaN()), Double(math.NaN())))
	assert.True(t, Equal(Ints(5, 10, 15), NewArray(Int(5), Int(10), Int(15))))
	assert.False(t, Equal(Ints(5, 10), Ints(5, 10, 15)))
	assert.True(t, Equal(Nil{}, Nil{}))
	assert.False(t, Equal(Nil{}, Bool(false)))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(Int(0)), "zero is truthy in the host dialect")
	assert.True(t, Truthy(Double(0)))
	assert.True(t, Truthy(Bool(true)))
	assert.False(t, Truthy(Bool(false)))
	assert.False(t, Truthy(Nil{}))
	assert.False(t, Truthy(nil))
}

func TestDoubleString_KeepsFractionalMarker(t *testing.T) {
	assert.Equal(t, "3.0", Double(3).String())
	assert.Equal(t, "2.5", Double(2.5).String())
	assert.Equal(t, "1e+21", Double(1e21).String())
	assert.Equal(t, "+Inf", Double(math.Inf(1)).String())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"2.0", Double(2)},
		{"1e3", Double(1000)},
		{"true", Bool(true)},
		{"nil", Nil{}},
		{"[1, 2, 3]", Ints(1, 2, 3)},
		{"[]", Array{}},
		{"[[1, 2], [3]]", NewArray(Ints(1, 2), Ints(3))},
		{"[1.5, [true, nil]]", NewArray(Double(1.5), NewArray(Bool(true), Nil{}))},
		{" [ -1 ,2 ] ", Ints(-1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := ParseValue("abc")
	assert.Error(t, err)
	_, err = ParseValue("[1, 2")
	assert.Error(t, err)
	_, err = ParseValue("[1, [2, x]]")
	assert.ErrorContains(t, err, "[1]: [1]: invalid value")
	_, err = ParseValue(`"nil"`)
	assert.Error(t, err)
	_, err = ParseValue("{a: 1}")
	assert.Error(t, err)
}

func TestMarshalValue_PreservesTags(t *testing.T) {
	vals := []Value{Int(3), Double(3), Bool(false), Nil{}, NewArray(Double(0.5), Double(1)), Double(math.Inf(-1))}
	for _, v := range vals {
		data, err := MarshalValue(v)
		require.NoError(t, err)
		back, err := UnmarshalValue(data)
		require.NoError(t, err)
		assert.True(t, Equal(v, back), "%s -> %s -> %s", v, data, back)
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny([]any{1, 2.5, true})
	require.NoError(t, err)
	assert.True(t, Equal(NewArray(Int(1), Double(2.5), Bool(true)), v))

	_, err = FromAny("text")
	assert.Error(t, err, "strings are not host values")
}

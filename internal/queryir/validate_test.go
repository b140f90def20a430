package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	query := Select{
		From: Compilations,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "function", Value: "stride"},
			Equals{Field: "state", Value: "REJECTED"},
			AtLeast{Field: "seq", Value: 10},
		}},
	}

	result := Validate(query)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_Pointers(t *testing.T) {
	query := &Select{
		From:   CallSites,
		Filter: &And{Predicates: []Predicate{&Equals{Field: "arity", Value: 2}, &AtLeast{Field: "seq", Value: 1}}},
	}

	assert.True(t, Validate(query).Valid)
}

func TestValidate_NoFilter(t *testing.T) {
	assert.True(t, Validate(Select{From: CallSites}).Valid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil query", nil, "nil query"},
		{"nil pointer", (*Select)(nil), "nil query"},
		{"unknown table", Select{From: "carts"}, `unknown table "carts"`},
		{"unknown field", Select{From: CallSites, Filter: Equals{Field: "state", Value: "COMPILED"}}, `unknown field "state" for table call_sites`},
		{"text as int", Select{From: Compilations, Filter: Equals{Field: "state", Value: 3}}, `field "state" is text, got int`},
		{"int as text", Select{From: CallSites, Filter: Equals{Field: "arity", Value: "2"}}, `field "arity" is int, got string`},
		{"nil value", Select{From: CallSites, Filter: Equals{Field: "token", Value: nil}}, `field "token" compared to nil`},
		{"at least on text", Select{From: Compilations, Filter: AtLeast{Field: "state", Value: 1}}, `AtLeast needs int`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	query := Select{
		From: Compilations,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "hash", Value: "x"},
			And{Predicates: []Predicate{Equals{Field: "seq", Value: "1"}}},
		}},
	}

	result := Validate(query)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestField(t *testing.T) {
	k, ok := Field(Compilations, "function")
	require.True(t, ok)
	assert.Equal(t, KindText, k)

	k, ok = Field(CallSites, "arity")
	require.True(t, ok)
	assert.Equal(t, KindInt, k)
	assert.Equal(t, "int", k.String())

	_, ok = Field(CallSites, "state")
	assert.False(t, ok)
}

func TestAll(t *testing.T) {
	assert.Nil(t, All())
	assert.Nil(t, All(nil, nil))

	eq := Equals{Field: "token", Value: "a"}
	assert.Equal(t, eq, All(nil, eq))

	seq := AtLeast{Field: "seq", Value: 2}
	assert.Equal(t, And{Predicates: []Predicate{eq, seq}}, All(eq, nil, seq))
}

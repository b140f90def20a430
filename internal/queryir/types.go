package queryir

// Table names a journal table.
type Table string

const (
	CallSites    Table = "call_sites"
	Compilations Table = "compilations"
)

// Kind is the storage type of a field.
type Kind int

const (
	KindText Kind = iota
	KindInt
)

func (k Kind) String() string {
	if k == KindInt {
		return "int"
	}
	return "text"
}

var fields = map[Table]map[string]Kind{
	CallSites: {
		"token":    KindText,
		"function": KindText,
		"hash":     KindText,
		"arity":    KindInt,
		"seq":      KindInt,
	},
	Compilations: {
		"token":     KindText,
		"function":  KindText,
		"state":     KindText,
		"signature": KindText,
		"error":     KindText,
		"seq":       KindInt,
	},
}

// Field returns the kind of a logical field of t.
func Field(t Table, name string) (Kind, bool) {
	k, ok := fields[t][name]
	return k, ok
}

// Query is a read query over one journal table.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a row filter.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - AtLeast: field >= value (INTEGER fields only)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Select reads the rows of From that satisfy Filter. A nil Filter keeps
// every row.
type Select struct {
	From   Table
	Filter Predicate
}

func (Select) queryNode() {}

// Equals holds when the field equals Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// AtLeast holds when the INTEGER field is at least Value.
type AtLeast struct {
	Field string
	Value int64
}

func (AtLeast) predicateNode() {}

// And holds when all of its predicates hold. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All joins the non-nil predicates of ps with And. It returns nil when
// none remain, so the result can be used as an optional filter.
func All(ps ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range ps {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

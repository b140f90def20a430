package queryir

import (
	"fmt"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid bool

	Errors []string
}

// Validate checks that a query only names known tables and fields and
// compares each field with a value of its kind.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validator accumulates errors during traversal.
type validator struct {
	table  Table
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := fields[sel.From]; !ok {
		v.addError("unknown table %q", sel.From)
		return
	}
	v.table = sel.From
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case AtLeast:
		v.validateAtLeast(pred)
	case *AtLeast:
		v.validateAtLeast(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) field(name string) (Kind, bool) {
	k, ok := Field(v.table, name)
	if !ok {
		v.addError("unknown field %q for table %s", name, v.table)
	}
	return k, ok
}

func (v *validator) validateEquals(eq Equals) {
	k, ok := v.field(eq.Field)
	if !ok {
		return
	}
	switch eq.Value.(type) {
	case string:
		if k == KindText {
			return
		}
	case int, int64:
		if k == KindInt {
			return
		}
	case nil:
		v.addError("field %q compared to nil", eq.Field)
		return
	}
	v.addError("field %q is %s, got %T", eq.Field, k, eq.Value)
}

func (v *validator) validateAtLeast(al AtLeast) {
	k, ok := v.field(al.Field)
	if ok && k != KindInt {
		v.addError("field %q is %s, AtLeast needs int", al.Field, k)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

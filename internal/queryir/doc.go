// Package queryir describes read queries over the compilation journal.
//
// A query selects rows of one journal table and narrows them with a
// predicate tree:
//
//	Select{
//	  From: Compilations,
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "function", Value: "stride"},
//	    Equals{Field: "state", Value: "REJECTED"},
//	    AtLeast{Field: "seq", Value: 10},
//	  }},
//	}
//
// Field names are logical: "function" is addressable on both tables even
// though compilations only store the token of their call site. Backends
// (see querysql) map logical fields to storage.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively over the node types.
//
// Values are restricted to the journal's column types: string for TEXT
// fields and int64 (or int) for INTEGER fields. Validate reports every
// node that breaks these rules.
package queryir

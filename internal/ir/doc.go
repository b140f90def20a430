// Package ir provides the value and type model shared by every skip package.
//
// This package contains runtime values of the host dialect, type tags and
// call signatures. All other internal packages import ir; ir imports nothing
// internal, which keeps it the foundational layer.
//
// Key constraints:
//   - Values are sealed: only Int, Double, Bool, Array and Nil implement Value
//   - Equality is exact; Int(1) and Double(1) are different values
//   - A Signature never changes after construction
//   - Arrays are literal-sized: a fixed length and one scalar element tag
package ir

// Package sv reads separated-value files: a Reader that yields decoded lines
// from a file in a declared byte encoding, and a Normalizer that turns one
// line into a field vector.
//
// Parsing is deliberately simple. Fields are split on every literal
// occurrence of the delimiter; there is no quoting or escaping convention,
// so a delimiter inside a field always splits it.
package sv

// Package content reads and patches the structured records moved by uniqtime.
//
// A record is an XML document carrying a subject id and a minute-precision
// event timestamp as attributes of two known elements. Parse locates both
// attributes without building a DOM; WithTimestamp splices a new timestamp
// value into the original bytes so nothing else in the document changes
// (declaration, whitespace, attribute order and comments are all preserved).
package content

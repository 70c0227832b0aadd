// Package lcmtypes implements the LCM types published by the Drake viewer protocol.
//
// Messages are encoded the way lcm-gen generated code encodes them: an 8 byte big endian
// fingerprint followed by the members in declaration order, big endian, with strings
// written as a length (including the trailing NUL) followed by the bytes and a NUL.
// Variable length arrays are sized by the count member that precedes them.
package lcmtypes

// Package catproto implements the wire codec for the transceiver's CAT
// serial command protocol.
//
// The codec is pure and stateless: it translates between domain values
// (opcode, parameter bytes, frequency in Hz) and fixed-format byte frames.
// Outbound frames are 1-6 raw bytes; inbound frames are at most 5 raw bytes
// with no framing, checksum or escaping. Frequencies travel in a
// reversed-decimal encoding that only round-trips through this codec's own
// matching decode; see EncodeFrequency for the details.
package catproto

// Package serialport owns the serial byte channel to the transceiver.
//
// It wraps the tarm/serial implementation behind a small Transport
// interface so the protocol layer can be exercised against a fake port
// with no hardware attached. Reads are bounded by the configured read
// timeout; a short read is reported through the returned length, never as
// an error.
package serialport

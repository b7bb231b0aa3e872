// Package adapter defines the transceiver adapter interface for the CAT
// Control Container.
//
// Transceiver adapters implement the vendor-specific CAT protocol needed to
// talk to a radio over its serial command interface. The ITransceiverAdapter
// interface provides a stable API contract that all adapters must implement,
// and the package carries the normalized error taxonomy every adapter maps
// its failures into.
package adapter

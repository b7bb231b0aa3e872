package catproto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cat-control/ccc/internal/adapter"
)

// CAT opcode table. These are protocol constants, not configuration.
const (
	// OpGetFrequency requests the current frequency and mode.
	OpGetFrequency = byte(0x03)

	// OpSetMode selects the operating mode.
	OpSetMode = byte(0x07)

	// OpGetStatus requests the receiver status byte.
	OpGetStatus = byte(0xE7)

	// OpSetFrequencySuffix trails every set-frequency frame.
	OpSetFrequencySuffix = byte(0x01)
)

const (
	// ResponseLength is the nominal response frame length. The device
	// negotiates nothing; the length is assumed a priori and short reads
	// are possible.
	ResponseLength = 5

	// MaxFrequencyDigits bounds a frequency to 10 decimal digits.
	MaxFrequencyDigits = 10

	// MaxFrequencyHz is the exclusive upper bound for an encodable
	// frequency: 10^10 Hz.
	MaxFrequencyHz = uint64(10_000_000_000)

	// frequencyBytes is the number of raw bytes a 10-digit frequency
	// occupies on the wire, excluding the trailing opcode.
	frequencyBytes = MaxFrequencyDigits / 2

	// frequencyDecodeBytes is how many leading response bytes carry the
	// frequency on the inbound side.
	frequencyDecodeBytes = 4
)

// Command is an opcode plus optional parameter bytes. Immutable once
// constructed.
type Command struct {
	Opcode byte
	Params []byte
}

// NewCommand builds a bare command from an opcode.
func NewCommand(opcode byte) Command {
	return Command{Opcode: opcode}
}

// NewCommandWithParams builds a parameterized command. The parameter slice
// is copied so the command cannot be mutated through the caller's slice.
func NewCommandWithParams(opcode byte, params []byte) Command {
	p := make([]byte, len(params))
	copy(p, params)
	return Command{Opcode: opcode, Params: p}
}

// Encode renders the command's wire frame. Frame layout is params followed
// by the opcode byte for parameterized commands, or the opcode alone for
// bare commands.
func (c Command) Encode() []byte {
	if len(c.Params) == 0 {
		return []byte{c.Opcode}
	}
	frame := make([]byte, 0, len(c.Params)+1)
	frame = append(frame, c.Params...)
	frame = append(frame, c.Opcode)
	return frame
}

func (c Command) String() string {
	if len(c.Params) == 0 {
		return fmt.Sprintf("{Opcode: 0x%02X}", c.Opcode)
	}
	return fmt.Sprintf("{Opcode: 0x%02X, Params: %X}", c.Opcode, c.Params)
}

// EncodeFrequency renders a frequency in Hz as a set-frequency wire frame.
//
// The transform: format hz as a 10-digit zero-padded decimal string, reverse
// the character order, read the reversed string as hex nibble pairs to form
// 5 raw bytes, then append the set-frequency opcode. Reversing the decimal
// digit string is not standards-compliant BCD (true BCD swaps nibbles, not
// characters) but it is what the originating controller emits, and this
// codec replicates it byte-for-byte rather than correcting it. The value
// only round-trips through the matching DecodeFrequency quirks; see the
// codec tests for the exact relationship.
func EncodeFrequency(hz uint64) ([]byte, error) {
	if hz >= MaxFrequencyHz {
		return nil, adapter.Wrap(adapter.ErrValue,
			fmt.Errorf("frequency %d Hz exceeds %d decimal digits", hz, MaxFrequencyDigits))
	}

	digits := fmt.Sprintf("%010d", hz)
	reversed := reverseString(digits)

	// Decimal digits are a subset of hex digits, so this cannot fail for
	// an in-range frequency.
	raw, err := hex.DecodeString(reversed)
	if err != nil {
		return nil, adapter.Wrap(adapter.ErrValue, err)
	}

	frame := make([]byte, 0, frequencyBytes+1)
	frame = append(frame, raw...)
	frame = append(frame, OpSetFrequencySuffix)
	return frame, nil
}

// DecodeFrequency extracts a frequency in Hz from a response frame.
//
// The transform mirrors the encoder's inversion: take the first 4 bytes,
// reverse their byte order, render as a hex string and parse that string as
// a base-10 integer. The parse fails whenever a response nibble falls
// outside 0-9, which is how a non-BCD (malformed or unrelated) response
// surfaces.
func DecodeFrequency(response []byte) (uint64, error) {
	if len(response) < frequencyDecodeBytes {
		return 0, adapter.Wrap(adapter.ErrProtocol,
			fmt.Errorf("short response: got %d bytes, need %d", len(response), frequencyDecodeBytes))
	}

	reversed := []byte{response[3], response[2], response[1], response[0]}
	digits := hex.EncodeToString(reversed)

	hz, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, adapter.Wrap(adapter.ErrProtocol,
			fmt.Errorf("response %X does not decode to a frequency", response[:frequencyDecodeBytes]))
	}
	return hz, nil
}

// ParseHexParams interprets a user-supplied hex string as raw parameter
// bytes. ASCII spaces are tolerated the way the originating tool tolerated
// them; an odd number of digits or a non-hex character is an input error.
func ParseHexParams(text string) ([]byte, error) {
	cleaned := strings.ReplaceAll(text, " ", "")
	if len(cleaned)%2 != 0 {
		return nil, adapter.Wrap(adapter.ErrValue,
			fmt.Errorf("hex parameter string %q has odd length", text))
	}
	params, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, adapter.Wrap(adapter.ErrValue,
			fmt.Errorf("hex parameter string %q: %v", text, err))
	}
	return params, nil
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

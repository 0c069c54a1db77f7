package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressHRP is the bech32 human-readable prefix for protocol accounts.
const AddressHRP = "rpt"

// AddressLength is the canonical account address size in bytes.
const AddressLength = 20

var errAddressLength = errors.New("types: address must be 20 bytes")

// Address identifies a protocol account or token. The zero value is reserved
// and never a valid participant.
type Address [AddressLength]byte

// BytesToAddress copies b into an Address, rejecting any other length.
func BytesToAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, errAddressLength
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes a bech32 account string carrying the protocol HRP.
func ParseAddress(s string) (Address, error) {
	var a Address
	hrp, data, err := bech32.Decode(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("types: decode address: %w", err)
	}
	if hrp != AddressHRP {
		return a, fmt.Errorf("types: decode address: unsupported hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return a, fmt.Errorf("types: decode address: %w", err)
	}
	if len(decoded) != AddressLength {
		return a, fmt.Errorf("types: decode address: invalid length %d", len(decoded))
	}
	copy(a[:], decoded)
	return a, nil
}

// MustParseAddress is ParseAddress for trusted literals; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the bech32 form.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the 0x-prefixed hexadecimal form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// IsZero reports whether the address is entirely zero.
func (a Address) IsZero() bool { return a == Address{} }

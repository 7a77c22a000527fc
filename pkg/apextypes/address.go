// Package apextypes holds the data model shared by every chain adapter:
// addresses, chain identities, transactions, and their terminal results.
package apextypes

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ss58Prefix is prepended to the payload before checksumming, per the
// substrate address format.
var ss58Prefix = []byte("SS58PRE")

// AddressKind tags which ecosystem an Address belongs to.
type AddressKind int

const (
	// AddressSubstrate marks an SS58-encoded address.
	AddressSubstrate AddressKind = iota
	// AddressEvm marks a 0x-prefixed 20-byte hex address.
	AddressEvm
)

func (k AddressKind) String() string {
	switch k {
	case AddressSubstrate:
		return "substrate"
	case AddressEvm:
		return "evm"
	default:
		return "unknown"
	}
}

// Address is a tagged union over a substrate SS58 string or an EVM hex
// string. It is a value type; copying an Address is cheap.
type Address struct {
	kind  AddressKind
	value string
}

// Substrate builds an Address from an SS58 string without validating it.
func Substrate(s string) Address {
	return Address{kind: AddressSubstrate, value: s}
}

// Evm builds an Address from a hex string without validating it.
func Evm(s string) Address {
	return Address{kind: AddressEvm, value: s}
}

// SubstrateChecked builds an Address from an SS58 string, validating its
// checksum and charset.
func SubstrateChecked(s string) (Address, error) {
	if err := ValidateSS58(s); err != nil {
		return Address{}, err
	}
	return Substrate(s), nil
}

// EvmChecked builds an Address from a hex string, validating its length and
// charset. It does not enforce EIP-55 checksum casing — a checksummed
// string round-trips through storage intact but is not required.
func EvmChecked(s string) (Address, error) {
	if err := ValidateEvmHex(s); err != nil {
		return Address{}, err
	}
	return Evm(s), nil
}

// Kind reports which ecosystem the address belongs to.
func (a Address) Kind() AddressKind {
	return a.kind
}

// String returns the address's underlying representation unchanged.
func (a Address) String() string {
	return a.value
}

// IsZero reports whether the address was never assigned a value.
func (a Address) IsZero() bool {
	return a.value == ""
}

// Equal compares two addresses using the matching ecosystem's rule:
// substrate addresses compare byte-exact, EVM addresses compare
// case-insensitively on the hex suffix. Addresses of different kinds are
// never equal.
func (a Address) Equal(other Address) bool {
	if a.kind != other.kind {
		return false
	}
	if a.kind == AddressEvm {
		return strings.EqualFold(a.value, other.value)
	}
	return a.value == other.value
}

// MarshalJSON renders the address as its plain string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", a.value)), nil
}

// ValidateEvmHex checks for a "0x" prefix followed by exactly 40 hex
// characters.
func ValidateEvmHex(s string) error {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("evm address %q missing 0x prefix", s)
	}
	suffix := s[2:]
	if len(suffix) != 40 {
		return fmt.Errorf("evm address %q must have 40 hex characters after 0x, got %d", s, len(suffix))
	}
	for _, r := range suffix {
		if !isHexDigit(r) {
			return fmt.Errorf("evm address %q contains non-hex character %q", s, r)
		}
	}
	return nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// ValidateSS58 decodes an SS58 string and verifies its checksum.
//
// Layout: [network prefix (1 or 2 bytes)] [public key (32 bytes)] [checksum
// (2 bytes)], base58-encoded as a whole. The checksum is the first two
// bytes of blake2b-512("SS58PRE" || prefix || pubkey).
func ValidateSS58(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("ss58 address %q is not valid base58: %w", s, err)
	}
	// Support single-byte network prefixes (covers Polkadot=0, Kusama=2,
	// generic substrate=42) plus the 32-byte public key and 2-byte checksum.
	const pubkeyLen = 32
	const checksumLen = 2
	if len(raw) == 1+pubkeyLen+checksumLen {
		return verifySS58Checksum(raw[:1+pubkeyLen], raw[1+pubkeyLen:])
	}
	if len(raw) == 2+pubkeyLen+checksumLen {
		return verifySS58Checksum(raw[:2+pubkeyLen], raw[2+pubkeyLen:])
	}
	return fmt.Errorf("ss58 address %q has unexpected decoded length %d", s, len(raw))
}

func verifySS58Checksum(prefixAndKey, checksum []byte) error {
	got, err := ss58Checksum(prefixAndKey)
	if err != nil {
		return err
	}
	if got[0] != checksum[0] || got[1] != checksum[1] {
		return fmt.Errorf("ss58 checksum mismatch")
	}
	return nil
}

func ss58Checksum(prefixAndKey []byte) ([]byte, error) {
	h, err := blake2b.New(64, nil)
	if err != nil {
		return nil, err
	}
	h.Write(ss58Prefix)
	h.Write(prefixAndKey)
	return h.Sum(nil)[:2], nil
}

// DecodeSS58 validates s and returns its 32-byte public key, stripping the
// network prefix and checksum.
func DecodeSS58(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("ss58 address %q is not valid base58: %w", s, err)
	}
	const pubkeyLen = 32
	const checksumLen = 2
	switch len(raw) {
	case 1 + pubkeyLen + checksumLen:
		if err := verifySS58Checksum(raw[:1+pubkeyLen], raw[1+pubkeyLen:]); err != nil {
			return nil, err
		}
		return raw[1 : 1+pubkeyLen], nil
	case 2 + pubkeyLen + checksumLen:
		if err := verifySS58Checksum(raw[:2+pubkeyLen], raw[2+pubkeyLen:]); err != nil {
			return nil, err
		}
		return raw[2 : 2+pubkeyLen], nil
	default:
		return nil, fmt.Errorf("ss58 address %q has unexpected decoded length %d", s, len(raw))
	}
}

// EncodeSS58 encodes a 32-byte public key under the given single-byte
// network prefix (e.g. 0 for Polkadot, 2 for Kusama, 42 generic).
func EncodeSS58(prefix byte, pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", fmt.Errorf("ss58 public key must be 32 bytes, got %d", len(pubkey))
	}
	body := append([]byte{prefix}, pubkey...)
	checksum, err := ss58Checksum(body)
	if err != nil {
		return "", err
	}
	return base58.Encode(append(body, checksum...)), nil
}

package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	bip39 "github.com/FactomProject/go-bip39"
	"golang.org/x/crypto/blake2b"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// substrateSS58Prefix is the generic substrate network prefix (42); callers
// needing a chain-specific prefix (Polkadot 0, Kusama 2, ...) should derive
// their own address with apextypes.EncodeSS58 directly.
const substrateSS58Prefix = 42

// SubstrateWallet holds an Ed25519 key pair for the substrate ecosystem.
//
// The source project's key model supports SR25519 or Ed25519; this module
// supports Ed25519 only — the corpus this SDK was grounded on carries no
// sr25519/schnorrkel implementation, while crypto/ed25519 is already used
// directly elsewhere in it.
type SubstrateWallet struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address apextypes.Address
}

// NewSubstrateRandom generates a fresh random substrate wallet.
func NewSubstrateRandom() (*SubstrateWallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("failed to generate key: %v", err))
	}
	return newSubstrateWallet(priv, pub)
}

// NewSubstrateFromSeed builds a substrate wallet from a raw 32-byte seed.
func NewSubstrateFromSeed(seed []byte) (*SubstrateWallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, apexerr.Signer(fmt.Sprintf("expected a %d-byte seed, got %d", ed25519.SeedSize, len(seed)))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return newSubstrateWallet(priv, pub)
}

// NewSubstrateFromMnemonic derives a substrate wallet's seed from a BIP39
// mnemonic and passphrase by taking the first 32 bytes of the BIP39 seed.
func NewSubstrateFromMnemonic(mnemonic, passphrase string) (*SubstrateWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, apexerr.Signer("invalid BIP39 mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewSubstrateFromSeed(seed[:ed25519.SeedSize])
}

func newSubstrateWallet(priv ed25519.PrivateKey, pub ed25519.PublicKey) (*SubstrateWallet, error) {
	addr, err := apextypes.EncodeSS58(substrateSS58Prefix, pub)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("failed to derive ss58 address: %v", err))
	}
	return &SubstrateWallet{
		priv:    priv,
		pub:     pub,
		address: apextypes.Substrate(addr),
	}, nil
}

// Address returns the wallet's SS58 address, derived once at construction.
func (w *SubstrateWallet) Address() apextypes.Address {
	return w.address
}

// SignTransaction signs a 32-byte digest and returns a 64-byte Ed25519
// signature.
func (w *SubstrateWallet) SignTransaction(encodedTx []byte) ([]byte, error) {
	return w.SignHash(encodedTx)
}

// SignHash signs an arbitrary-length payload. Per the substrate convention,
// callers typically pass a blake2b-256 digest of the encoded extrinsic.
func (w *SubstrateWallet) SignHash(payload []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, payload), nil
}

// Blake2b256 hashes data with blake2b-256, the digest substrate extrinsics
// are conventionally signed over.
func Blake2b256(data []byte) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// Zero overwrites the private key in place.
func (w *SubstrateWallet) Zero() {
	for i := range w.priv {
		w.priv[i] = 0
	}
}

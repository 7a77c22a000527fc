package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"strings"

	bip32 "github.com/FactomProject/go-bip32"
	bip39 "github.com/FactomProject/go-bip39"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// bip44Purpose/bip44CoinTypeEth follow BIP-44 for Ethereum: m/44'/60'/0'/0/index.
const (
	bip44HardenedOffset = uint32(0x80000000)
	bip44Purpose        = 44
	bip44CoinTypeEth    = 60
)

var exportLogger = log.New(log.Writer(), "[wallet] ", log.LstdFlags)

// EvmWallet holds a secp256k1 key pair for the EVM ecosystem.
type EvmWallet struct {
	key     *ecdsa.PrivateKey
	address apextypes.Address
	chainID *uint64
}

// NewEvmRandom generates a fresh random EVM wallet.
func NewEvmRandom() (*EvmWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("failed to generate key: %v", err))
	}
	return newEvmWallet(key), nil
}

// NewEvmFromPrivateKey builds an EVM wallet from a hex private key, with or
// without a "0x" prefix.
func NewEvmFromPrivateKey(hexKey string) (*EvmWallet, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("invalid private key: %v", err))
	}
	return newEvmWallet(key), nil
}

// NewEvmFromMnemonic derives an EVM wallet from a BIP39 mnemonic at the
// standard Ethereum BIP-44 path m/44'/60'/0'/0/index.
func NewEvmFromMnemonic(mnemonic string, index uint32) (*EvmWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, apexerr.Signer("invalid BIP39 mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("failed to derive master key: %v", err))
	}

	derived := master
	path := []uint32{
		bip44HardenedOffset + bip44Purpose,
		bip44HardenedOffset + bip44CoinTypeEth,
		bip44HardenedOffset + 0,
		0,
		index,
	}
	for _, childIdx := range path {
		derived, err = derived.NewChildKey(childIdx)
		if err != nil {
			return nil, apexerr.Signer(fmt.Sprintf("failed to derive child key: %v", err))
		}
	}

	key, err := crypto.ToECDSA(derived.Key)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("derived key is not a valid secp256k1 key: %v", err))
	}
	return newEvmWallet(key), nil
}

func newEvmWallet(key *ecdsa.PrivateKey) *EvmWallet {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &EvmWallet{
		key:     key,
		address: apextypes.Evm(addr.Hex()),
	}
}

// WithChainID attaches a chain id used for EIP-155 replay protection and
// returns the same wallet for chaining.
func (w *EvmWallet) WithChainID(chainID uint64) *EvmWallet {
	w.chainID = &chainID
	return w
}

// ChainID returns the configured chain id, if any.
func (w *EvmWallet) ChainID() *uint64 {
	return w.chainID
}

// Address returns the wallet's EVM address.
func (w *EvmWallet) Address() apextypes.Address {
	return w.address
}

// SignTransaction signs a 32-byte digest (the encoded transaction's hash)
// and returns a 65-byte recoverable secp256k1 signature.
func (w *EvmWallet) SignTransaction(encodedTx []byte) ([]byte, error) {
	return w.SignHash(encodedTx)
}

// SignHash signs a raw 32-byte digest, returning [R || S || V].
func (w *EvmWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, apexerr.Signer(fmt.Sprintf("expected a 32-byte hash, got %d bytes", len(hash)))
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, apexerr.Signer(fmt.Sprintf("failed to sign hash: %v", err))
	}
	return sig, nil
}

// SignMessage signs an arbitrary message under the EIP-191 personal-message
// prefix: keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func (w *EvmWallet) SignMessage(message []byte) ([]byte, error) {
	prefixed := []byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message)))
	prefixed = append(prefixed, message...)
	hash := crypto.Keccak256(prefixed)
	return w.SignHash(hash)
}

// SignTypedDataHash signs a pre-computed EIP-712 typed-data hash.
func (w *EvmWallet) SignTypedDataHash(hash []byte) ([]byte, error) {
	return w.SignHash(hash)
}

// ExportPrivateKey returns the raw private key bytes. This is a distinct,
// logged operation: exporting key material is noteworthy regardless of who
// calls it.
func (w *EvmWallet) ExportPrivateKey() []byte {
	exportLogger.Printf("private key exported for address %s", w.address)
	return crypto.FromECDSA(w.key)
}

// Zero overwrites the private key's scalar in place.
func (w *EvmWallet) Zero() {
	if w.key == nil || w.key.D == nil {
		return
	}
	w.key.D.SetInt64(0)
}

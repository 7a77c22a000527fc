package wallet

import (
	"strings"
	"testing"
)

func TestEvmFromPrivateKeyMatchesKnownAddress(t *testing.T) {
	// Hardhat's default account #0.
	w, err := NewEvmFromPrivateKey("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	if !strings.EqualFold(w.Address().String(), want) {
		t.Fatalf("got address %s, want %s", w.Address(), want)
	}
}

func TestEvmFromPrivateKeyAcceptsMissingPrefix(t *testing.T) {
	w1, err := NewEvmFromPrivateKey("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w2, err := NewEvmFromPrivateKey("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w1.Address().Equal(w2.Address()) {
		t.Fatalf("expected same address regardless of 0x prefix")
	}
}

func TestEvmSignHashRequires32Bytes(t *testing.T) {
	w, err := NewEvmRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.SignHash([]byte("too short")); err == nil {
		t.Fatalf("expected error signing a non-32-byte hash")
	}
}

func TestEvmFromMnemonicDerivesDeterministically(t *testing.T) {
	mnemonic := "test test test test test test test test test test test junk"
	w1, err := NewEvmFromMnemonic(mnemonic, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w2, err := NewEvmFromMnemonic(mnemonic, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w1.Address().Equal(w2.Address()) {
		t.Fatalf("expected deterministic derivation for the same mnemonic and index")
	}

	w3, err := NewEvmFromMnemonic(mnemonic, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w1.Address().Equal(w3.Address()) {
		t.Fatalf("expected different addresses at different derivation indices")
	}
}

func TestSubstrateWalletAddressIsValidSS58(t *testing.T) {
	w, err := NewSubstrateRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Address().Kind().String() != "substrate" {
		t.Fatalf("expected substrate address kind")
	}
}

func TestSubstrateSignProducesVerifiableSignature(t *testing.T) {
	w, err := NewSubstrateRandom()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	digest, err := Blake2b256([]byte("payload"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, err := w.SignTransaction(digest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected a 64-byte ed25519 signature, got %d bytes", len(sig))
	}
}

func TestManagerActiveWalletDefaultsToFirstAdded(t *testing.T) {
	m := NewManager()
	w1, _ := NewEvmRandom()
	w2, _ := NewEvmRandom()
	m.AddWallet(w1)
	m.AddWallet(w2)

	active, err := m.ActiveWallet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active.Address().Equal(w1.Address()) {
		t.Fatalf("expected first-added wallet to be active by default")
	}

	if err := m.SetActive(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, _ = m.ActiveWallet()
	if !active.Address().Equal(w2.Address()) {
		t.Fatalf("expected second wallet to be active after SetActive(1)")
	}
}

func TestManagerEmptyHasNoActiveWallet(t *testing.T) {
	m := NewManager()
	if _, err := m.ActiveWallet(); err == nil {
		t.Fatalf("expected error for an empty wallet manager")
	}
}

package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

func TestPasswordPolicy(t *testing.T) {
	cases := map[string]bool{
		"Password123":  false, // length 11
		"Password1234": true,
		"password1234": false, // no upper
		"PASSWORD1234": false, // no lower
		"PasswordAbcd": false, // no digit
		"password123":  false, // weak list, regardless of length
	}
	for pw, wantOK := range cases {
		err := ValidatePassword(pw)
		gotOK := err == nil
		if gotOK != wantOK {
			t.Errorf("ValidatePassword(%q): got ok=%v, want ok=%v (err=%v)", pw, gotOK, wantOK, err)
		}
	}
}

func TestAddAndGetAccountRoundTrip(t *testing.T) {
	ks := New()
	secret := []byte("super secret seed material")
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", secret, "CorrectHorse42"); err != nil {
		t.Fatalf("AddAccount failed: %v", err)
	}

	got, err := ks.GetAccount("alice", "CorrectHorse42")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if string(got) != string(secret) {
		t.Fatalf("got secret %q, want %q", got, secret)
	}
}

func TestAddAccountRejectsDuplicateName(t *testing.T) {
	ks := New()
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "CorrectHorse42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ks.AddAccount("alice", apextypes.AccountEvm, "0xdef", []byte("s2"), "CorrectHorse42")
	if err == nil {
		t.Fatalf("expected duplicate-name error")
	}
}

func TestAddAccountRejectsWeakPassword(t *testing.T) {
	ks := New()
	err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "weak")
	if err == nil {
		t.Fatalf("expected weak password to be rejected")
	}
}

func TestGetAccountWrongPasswordIsGeneric(t *testing.T) {
	ks := New()
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "CorrectHorse42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := ks.GetAccount("alice", "WrongPassword1")
	if err == nil {
		t.Fatalf("expected error for wrong password")
	}
}

func TestKeystoreLockoutAfterFiveFailures(t *testing.T) {
	ks := New()
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "CorrectHorse42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < MaxFailedAttempts; i++ {
		if _, err := ks.GetAccount("alice", "wrong"); err == nil {
			t.Fatalf("expected failure on attempt %d", i+1)
		}
	}

	// Sixth call, even with the correct password, is locked out.
	_, err := ks.GetAccount("alice", "CorrectHorse42")
	if err == nil {
		t.Fatalf("expected lockout error")
	}
	ae, ok := err.(*apexerr.Error)
	if !ok || ae.Kind != apexerr.KindLockout {
		t.Fatalf("expected KindLockout, got %v", err)
	}
}

func TestListAccountsNeverExposesSecrets(t *testing.T) {
	ks := New()
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "CorrectHorse42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metas := ks.ListAccounts()
	if len(metas) != 1 || metas[0].Name != "alice" {
		t.Fatalf("unexpected metadata: %+v", metas)
	}
}

func TestRemoveAccountMissingNameIsError(t *testing.T) {
	ks := New()
	if err := ks.RemoveAccount("nobody"); err == nil {
		t.Fatalf("expected error removing a missing account")
	}
}

func TestSaveSetsRestrictivePermissions(t *testing.T) {
	if os.Getenv("GOOS") == "windows" {
		t.Skip("POSIX-only permission check")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "keystore.json")

	ks := New()
	if err := ks.AddAccount("alice", apextypes.AccountEvm, "0xabc", []byte("s1"), "CorrectHorse42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ks.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("got permissions %o, want 0600", perm)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reloaded.HasAccount("alice") {
		t.Fatalf("expected reloaded keystore to contain alice")
	}
}

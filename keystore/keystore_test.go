package keystore

import (
	"testing"

	"github.com/aurum-chain/aurum/crypto"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	data, err := Encrypt(priv, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	decrypted, err := Decrypt(data, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted.Public().Address() != priv.Public().Address() {
		t.Error("decrypted key derives a different address")
	}
}

func TestDecryptWrongPasswordIsInvalidCredential(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encrypt(priv, "right-password")
	if err != nil {
		t.Fatal(err)
	}

	_, err = Decrypt(data, "wrong-password")
	if err == nil {
		t.Fatal("expected decryption with wrong password to fail")
	}
	var ksErr *Error
	if ok := asKeystoreError(err, &ksErr); !ok || ksErr.Code != InvalidCredential {
		t.Errorf("expected InvalidCredential, got %v", err)
	}
}

func asKeystoreError(err error, target **Error) bool {
	ke, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = ke
	return true
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	path, err := SaveFile(dir, priv, "pw")
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if path == "" {
		t.Fatal("SaveFile returned empty path")
	}

	loaded, err := LoadFile(dir, priv.Public().Address(), "pw")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Public().Address() != priv.Public().Address() {
		t.Error("loaded key derives a different address")
	}

	if _, err := SaveFile(dir, priv, "pw"); err == nil {
		t.Error("expected SaveFile to refuse overwriting an existing keystore file")
	}
}

func TestListAddresses(t *testing.T) {
	dir := t.TempDir()
	priv1, _, _ := crypto.GenerateKeyPair()
	priv2, _, _ := crypto.GenerateKeyPair()
	if _, err := SaveFile(dir, priv1, "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveFile(dir, priv2, "pw"); err != nil {
		t.Fatal(err)
	}

	addrs, err := ListAddresses(dir)
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
}

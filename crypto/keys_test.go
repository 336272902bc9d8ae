package crypto

import "testing"

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	addr := pub.Address()
	if len(addr) != 44 {
		t.Errorf("address length: got %d want 44", len(addr))
	}
	if addr[:4] != "aur1" {
		t.Errorf("address prefix: got %q want aur1", addr[:4])
	}
	if priv.Public().Hex() != pub.Hex() {
		t.Error("derived public key does not match")
	}
}

func TestAddressDerivationIsPure(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if DeriveAddress(pub) != DeriveAddress(pub) {
		t.Error("DeriveAddress is not deterministic")
	}
}

func TestPrivKeyHexRoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := PrivKeyFromHex(priv.Hex())
	if err != nil {
		t.Fatalf("PrivKeyFromHex: %v", err)
	}
	if decoded.Public().Address() != priv.Public().Address() {
		t.Error("round-tripped private key derives a different address")
	}
}

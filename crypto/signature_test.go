package crypto

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("aurum block header")
	sig := Sign(priv, msg)
	if len(sig) != 65 {
		t.Fatalf("signature length: got %d want 65", len(sig))
	}
	if err := Verify(pub, msg, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered message should fail verification")
	}
}

func TestRecoverPublic(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("recover me")
	sig := Sign(priv, msg)
	recovered, err := RecoverPublic(msg, sig)
	if err != nil {
		t.Fatalf("RecoverPublic: %v", err)
	}
	if recovered.Address() != pub.Address() {
		t.Error("recovered public key does not match signer")
	}
}

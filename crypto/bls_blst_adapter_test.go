//go:build blst

package crypto

import (
	"bytes"
	"testing"
)

func TestBlstSignVerify(t *testing.T) {
	pub, sec, err := BlstKeyGen(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("BlstKeyGen: %v", err)
	}
	hash := Keccak256Hash([]byte("session"))
	sig, err := BlstSign(sec, hash[:])
	if err != nil {
		t.Fatalf("BlstSign: %v", err)
	}
	if err := VerifyBLS(pub, hash, sig); err != nil {
		t.Fatalf("VerifyBLS: %v", err)
	}
	other := Keccak256Hash([]byte("other"))
	if err := VerifyBLS(pub, other, sig); err == nil {
		t.Fatal("signature over a different hash must be rejected")
	}
}

func TestBlstKeyGenShortIKM(t *testing.T) {
	if _, _, err := BlstKeyGen(make([]byte, 31)); err != ErrBlstInvalidIKM {
		t.Fatalf("expected ErrBlstInvalidIKM, got %v", err)
	}
}

package circuit

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/optiswap/optiswap/core/types"
)

func TestNumGates(t *testing.T) {
	if got := NumGates(1); got != 5 {
		t.Fatalf("NumGates(1) = %d, want 5", got)
	}
	if got := NumGates(10); got != 41 {
		t.Fatalf("NumGates(10) = %d, want 41", got)
	}
}

func TestCheckLayout(t *testing.T) {
	if err := CheckLayout(3, 13); err != nil {
		t.Fatalf("CheckLayout(3, 13): %v", err)
	}
	for _, tc := range [][2]uint64{{3, 12}, {3, 14}, {0, 1}, {MaxNumBlocks + 1, NumGates(MaxNumBlocks + 1)}} {
		if err := CheckLayout(tc[0], tc[1]); !errors.Is(err, types.ErrInvalidParams) {
			t.Fatalf("CheckLayout(%d, %d): err = %v, want ErrInvalidParams", tc[0], tc[1], err)
		}
	}
}

func TestDigestSingleBlock(t *testing.T) {
	p := []byte("sixteen byte msg")
	want := sha256.Sum256(p)
	if got := Digest(p); got != types.Hash(want) {
		t.Fatalf("Digest = %s, want %x", got, want)
	}
}

func TestComposeDecryption(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	var iv [16]byte
	iv[15] = 0xfe
	for _, size := range []int{1, 16, 17, 40, 64} {
		plaintext := make([]byte, size)
		for i := range plaintext {
			plaintext[i] = byte(i * 7)
		}
		ciphertext, err := EncryptCTR(key, iv, plaintext)
		if err != nil {
			t.Fatalf("EncryptCTR: %v", err)
		}
		digest := Digest(plaintext)

		gates, err := ComposeDecryption(ciphertext, iv, digest)
		if err != nil {
			t.Fatalf("ComposeDecryption: %v", err)
		}
		n := NumBlocks(size)
		if err := CheckLayout(n, uint64(len(gates))); err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		recs, err := EncodeAll(gates)
		if err != nil {
			t.Fatalf("EncodeAll: %v", err)
		}
		trace, err := NewEvaluator(key).EvaluateTrace(recs)
		if err != nil {
			t.Fatalf("size %d EvaluateTrace: %v", size, err)
		}
		if !bytes.Equal(trace[DigestGate], digest[:]) {
			t.Fatalf("size %d: digest gate = %x", size, trace[DigestGate])
		}
		if !bytes.Equal(trace[len(trace)-1], digest[:]) {
			t.Fatalf("size %d: final gate = %x, want %s", size, trace[len(trace)-1], digest)
		}
		var recovered []byte
		for i := uint64(0); i < n; i++ {
			recovered = append(recovered, trace[PlaintextGate(i)]...)
		}
		if !bytes.Equal(recovered, plaintext) {
			t.Fatalf("size %d: recovered plaintext mismatch", size)
		}
	}
}

func TestComposeDecryptionWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	var iv [16]byte
	plaintext := bytes.Repeat([]byte("abc"), 11)
	ciphertext, _ := EncryptCTR(key, iv, plaintext)
	digest := Digest(plaintext)
	gates, _ := ComposeDecryption(ciphertext, iv, digest)
	recs, _ := EncodeAll(gates)

	trace, err := NewEvaluator(bytes.Repeat([]byte{0x43}, 16)).EvaluateTrace(recs)
	if err != nil {
		t.Fatalf("EvaluateTrace: %v", err)
	}
	if bytes.Equal(trace[len(trace)-1], digest[:]) {
		t.Fatal("wrong key must not reproduce the digest")
	}
}

func TestComposeDecryptionEmpty(t *testing.T) {
	if _, err := ComposeDecryption(nil, [16]byte{}, types.Hash{}); !errors.Is(err, types.ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

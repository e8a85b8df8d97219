package crypto

import "testing"

func TestCommitOpen(t *testing.T) {
	value := []byte("expected digest")
	salt := []byte("0123456789abcdef")
	c := Commit(value, salt)

	if !Open(c, value, salt) {
		t.Fatal("commitment should open with the committed value and salt")
	}
	if Open(c, []byte("other digest"), salt) {
		t.Fatal("commitment must not open with a different value")
	}
	if Open(c, value, []byte("fedcba9876543210")) {
		t.Fatal("commitment must not open with a different salt")
	}
}

func TestCommitDeterministic(t *testing.T) {
	if Commit([]byte("v"), []byte("s")) != Commit([]byte("v"), []byte("s")) {
		t.Fatal("Commit must be deterministic")
	}
}

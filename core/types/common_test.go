package types

import "testing"

func TestBytesToHash(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	h := BytesToHash(b)
	if h[HashLength-1] != 0x03 || h[HashLength-2] != 0x02 || h[HashLength-3] != 0x01 {
		t.Fatalf("BytesToHash failed: got %x", h)
	}
	for i := 0; i < HashLength-3; i++ {
		if h[i] != 0 {
			t.Fatalf("BytesToHash did not left-pad: byte %d is %x", i, h[i])
		}
	}
}

func TestBytesToHash_LongerThan32(t *testing.T) {
	b := make([]byte, 40)
	for i := range b {
		b[i] = byte(i)
	}
	h := BytesToHash(b)
	for i := 0; i < HashLength; i++ {
		if h[i] != byte(i+8) {
			t.Fatalf("BytesToHash longer input: byte %d got %x, want %x", i, h[i], byte(i+8))
		}
	}
}

func TestHexToHash(t *testing.T) {
	h := HexToHash("0xdead")
	if h[HashLength-1] != 0xad || h[HashLength-2] != 0xde {
		t.Fatalf("HexToHash failed: got %x", h)
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatal("zero hash should be zero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Fatal("non-zero hash should not be zero")
	}
}

func TestHashHex(t *testing.T) {
	h := HexToHash("0xff")
	if got := h.Hex(); got[:2] != "0x" || len(got) != 2+2*HashLength {
		t.Fatalf("Hex = %q", got)
	}
}

func TestHexToAddress(t *testing.T) {
	a := HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	if a[0] != 0x7e || a[AddressLength-1] != 0xdf {
		t.Fatalf("HexToAddress failed: got %x", a)
	}
	if a.IsZero() {
		t.Fatal("address should not be zero")
	}
}

func TestFromHex(t *testing.T) {
	b, err := FromHex("0x0a0b")
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if len(b) != 2 || b[0] != 0x0a || b[1] != 0x0b {
		t.Fatalf("FromHex = %x", b)
	}
	if _, err := FromHex("0xzz"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

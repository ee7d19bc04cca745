package storage

import (
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestKeyVariantsASCII(t *testing.T) {
	got := KeyVariants("uploads/abc/invoice.png")
	if len(got) != 1 {
		t.Fatalf("expected 1 variant for ASCII key, got %d: %v", len(got), got)
	}
	if got[0] != "uploads/abc/invoice.png" {
		t.Fatalf("unexpected variant: %s", got[0])
	}
}

func TestKeyVariantsKorean(t *testing.T) {
	// Decomposed (NFD) Korean filename, as produced by macOS clients.
	nfd := norm.NFD.String("uploads/abc/영수증.png")
	nfc := norm.NFC.String(nfd)
	if nfd == nfc {
		t.Fatal("test key did not decompose")
	}

	got := KeyVariants(nfd)
	if len(got) != 2 {
		t.Fatalf("expected 2 variants, got %d: %v", len(got), got)
	}
	if got[0] != nfd {
		t.Fatalf("raw key must come first, got %s", got[0])
	}
	if got[1] != nfc {
		t.Fatalf("expected NFC variant second, got %s", got[1])
	}
}

func TestKeyVariantsOrderStable(t *testing.T) {
	key := norm.NFC.String("output/u1/한글.json")
	a := KeyVariants(key)
	b := KeyVariants(key)
	if len(a) != len(b) {
		t.Fatalf("variant count changed between calls: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("variant order changed at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

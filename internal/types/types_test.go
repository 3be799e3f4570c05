package types

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

func TestHashFromHex(t *testing.T) {
	want := Hash{0x01, 0x02}
	in := "0x" + want.Hex()
	got, ok := HashFromHex(in)
	if !ok || got != want {
		t.Fatalf("HashFromHex(%q) = %v,%v want %v,true", in, got, ok, want)
	}

	if _, ok := HashFromHex("not-hex"); ok {
		t.Fatalf("expected HashFromHex to reject malformed input")
	}
}

func TestDeriveContractAddressDeterministic(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()
	salt := Hash{0xAA}
	seed := []byte("seed-1")

	addr1, tweaked1, err := DeriveContractAddress(pub, salt, seed)
	if err != nil {
		t.Fatalf("DeriveContractAddress: %v", err)
	}
	addr2, tweaked2, err := DeriveContractAddress(pub, salt, seed)
	if err != nil {
		t.Fatalf("DeriveContractAddress: %v", err)
	}
	if addr1 != addr2 || hex.EncodeToString(tweaked1) != hex.EncodeToString(tweaked2) {
		t.Fatalf("derivation is not deterministic")
	}

	addr3, _, err := DeriveContractAddress(pub, salt, []byte("seed-2"))
	if err != nil {
		t.Fatalf("DeriveContractAddress: %v", err)
	}
	if addr1 == addr3 {
		t.Fatalf("different seeds produced the same address")
	}
}

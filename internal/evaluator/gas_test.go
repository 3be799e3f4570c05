package evaluator

import "testing"

func TestGasMeterOutOfGas(t *testing.T) {
	m := NewGasMeter(1000)
	if err := m.Consume(400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Consume(400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Consume(400); err == nil {
		t.Fatalf("expected OutOfGas")
	} else if !IsOutOfGas(err) {
		t.Fatalf("expected OutOfGasError, got %T", err)
	}
	if m.Used() != m.Limit() {
		t.Fatalf("on OutOfGas, used should equal limit: used=%d limit=%d", m.Used(), m.Limit())
	}
}

func TestGasCostUnknownOpcodeFallsBackToDefault(t *testing.T) {
	if got := GasCost(Opcode(9999)); got != DefaultGasCost {
		t.Fatalf("expected default cost %d, got %d", DefaultGasCost, got)
	}
}

func TestStorageWriteCostIsByteLinear(t *testing.T) {
	small := StorageWriteCost(0)
	big := StorageWriteCost(100)
	if big <= small {
		t.Fatalf("expected byte-linear cost to grow with size")
	}
}

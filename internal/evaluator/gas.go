package evaluator

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Opcode is a host-function selector charged from the gas schedule. Unlike
// the teacher's bytecode-interpreter opcodes (core/vm_opcodes.go), these
// name host-call boundaries crossed by WASM guest code, since the guest's
// own instructions are metered by wasmer's internal cost model.
type Opcode int

const (
	OpStorageRead Opcode = iota
	OpStorageWrite
	OpStorageWritePerByte
	OpLog
	OpLogPerByte
	OpCall
	OpDeploy
	OpHash
	OpReturn
)

// DefaultGasCost is charged for any opcode missing from the schedule. The
// teacher's gas_table.go leaves its table empty and always falls back to
// this constant; here the schedule below is populated for real so the
// fallback is only ever hit for a genuinely unknown opcode.
const DefaultGasCost uint64 = 100_000

var gasTable = map[Opcode]uint64{
	OpStorageRead:         2_000,
	OpStorageWrite:        5_000,
	OpStorageWritePerByte: 8,
	OpLog:                 375,
	OpLogPerByte:          8,
	OpCall:                40_000,
	OpDeploy:              200_000,
	OpHash:                60,
	OpReturn:              0,
}

var (
	warnOnce sync.Map // map[Opcode]struct{}
)

// GasCost looks up the fixed cost of op. A missing entry logs once and
// charges DefaultGasCost as a punitive fallback so an unmetered opcode
// cannot be free.
func GasCost(op Opcode) uint64 {
	if cost, ok := gasTable[op]; ok {
		return cost
	}
	if _, logged := warnOnce.LoadOrStore(op, struct{}{}); !logged {
		logrus.Warnf("evaluator: opcode %d missing from gas schedule, charging default %d", op, DefaultGasCost)
	}
	return DefaultGasCost
}

// StorageWriteCost returns the byte-linear cost of writing n bytes of
// storage (§4.3: "storage write costs are byte-linear (configurable)").
func StorageWriteCost(n int) uint64 {
	return GasCost(OpStorageWrite) + uint64(n)*GasCost(OpStorageWritePerByte)
}

// LogCost returns the byte-linear cost of emitting an n-byte log entry.
func LogCost(n int) uint64 {
	return GasCost(OpLog) + uint64(n)*GasCost(OpLogPerByte)
}

// GasMeter tracks consumption against a fixed limit. OutOfGas is recoverable
// only at the top-level call (§4.3).
type GasMeter struct {
	mu    sync.Mutex
	used  uint64
	limit uint64
}

// NewGasMeter constructs a meter with the given limit.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// OutOfGasError is returned by Consume when the limit would be exceeded.
type OutOfGasError struct{}

func (OutOfGasError) Error() string { return "evaluator: out of gas" }

// Consume charges cost against the remaining budget.
func (g *GasMeter) Consume(cost uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used+cost > g.limit {
		g.used = g.limit
		return OutOfGasError{}
	}
	g.used += cost
	return nil
}

// Used returns gas consumed so far.
func (g *GasMeter) Used() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}

// Remaining returns gas left before OutOfGas.
func (g *GasMeter) Remaining() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit - g.used
}

// Limit returns the meter's configured ceiling.
func (g *GasMeter) Limit() uint64 { return g.limit }

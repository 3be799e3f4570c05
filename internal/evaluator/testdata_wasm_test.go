package evaluator

// Hand-assembled WASM binary fixtures exercising the host ABI without a
// toolchain dependency: each is a minimal module with a single _start that
// calls exactly one host import. Kept deliberately straight-line (no
// branches or loops) so each fixture is easy to audit byte-by-byte.
//
// wasmStorageWrite writes the 32 bytes at memory offset 32 to the slot
// keyed by the 32 bytes at offset 0.
var wasmStorageWrite = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0x01, 0x09, 0x02, 0x60,
	0x02, 0x7F, 0x7F, 0x00, 0x60, 0x00, 0x00, 0x02, 0x1A, 0x01, 0x03, 0x65,
	0x6E, 0x76, 0x12, 0x68, 0x6F, 0x73, 0x74, 0x5F, 0x73, 0x74, 0x6F, 0x72,
	0x61, 0x67, 0x65, 0x5F, 0x77, 0x72, 0x69, 0x74, 0x65, 0x00, 0x00, 0x03,
	0x02, 0x01, 0x01, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06,
	0x5F, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x01, 0x06, 0x6D, 0x65, 0x6D,
	0x6F, 0x72, 0x79, 0x02, 0x00, 0x0A, 0x0A, 0x01, 0x08, 0x00, 0x41, 0x00,
	0x41, 0x20, 0x10, 0x00, 0x0B,
}

// wasmRevert reverts with the 4-byte reason "oops", stored in a data
// segment at offset 0.
var wasmRevert = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0x01, 0x09, 0x02, 0x60,
	0x02, 0x7F, 0x7F, 0x00, 0x60, 0x00, 0x00, 0x02, 0x13, 0x01, 0x03, 0x65,
	0x6E, 0x76, 0x0B, 0x68, 0x6F, 0x73, 0x74, 0x5F, 0x72, 0x65, 0x76, 0x65,
	0x72, 0x74, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01, 0x05, 0x03, 0x01, 0x00,
	0x01, 0x07, 0x13, 0x02, 0x06, 0x5F, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00,
	0x01, 0x06, 0x6D, 0x65, 0x6D, 0x6F, 0x72, 0x79, 0x02, 0x00, 0x0A, 0x0A,
	0x01, 0x08, 0x00, 0x41, 0x00, 0x41, 0x04, 0x10, 0x00, 0x0B, 0x0B, 0x0A,
	0x01, 0x00, 0x41, 0x00, 0x0B, 0x04, 0x6F, 0x6F, 0x70, 0x73,
}

// wasmOutOfGas asks the host to consume 5000 gas units in a single call;
// paired with a test gas limit below that, it traps with OutOfGasError.
var wasmOutOfGas = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x02, 0x60,
	0x01, 0x7E, 0x00, 0x60, 0x00, 0x00, 0x02, 0x18, 0x01, 0x03, 0x65, 0x6E,
	0x76, 0x10, 0x68, 0x6F, 0x73, 0x74, 0x5F, 0x63, 0x6F, 0x6E, 0x73, 0x75,
	0x6D, 0x65, 0x5F, 0x67, 0x61, 0x73, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06, 0x5F, 0x73, 0x74,
	0x61, 0x72, 0x74, 0x00, 0x01, 0x06, 0x6D, 0x65, 0x6D, 0x6F, 0x72, 0x79,
	0x02, 0x00, 0x0A, 0x09, 0x01, 0x07, 0x00, 0x42, 0x88, 0x27, 0x10, 0x00,
	0x0B,
}

// wasmReentrantCall calls host_call against the single-byte contract
// address "A" (held in a data segment at offset 0) with empty calldata and
// a zero-length output buffer. Used against a ContractCodeProvider that
// resolves "A" back to this same module, exercising the reentrancy guard.
var wasmReentrantCall = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0E, 0x02, 0x60,
	0x06, 0x7F, 0x7F, 0x7F, 0x7F, 0x7F, 0x7F, 0x01, 0x7F, 0x60, 0x00, 0x00,
	0x02, 0x11, 0x01, 0x03, 0x65, 0x6E, 0x76, 0x09, 0x68, 0x6F, 0x73, 0x74,
	0x5F, 0x63, 0x61, 0x6C, 0x6C, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01, 0x05,
	0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06, 0x5F, 0x73, 0x74, 0x61,
	0x72, 0x74, 0x00, 0x01, 0x06, 0x6D, 0x65, 0x6D, 0x6F, 0x72, 0x79, 0x02,
	0x00, 0x0A, 0x13, 0x01, 0x11, 0x00, 0x41, 0x00, 0x41, 0x01, 0x41, 0x00,
	0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0x10, 0x00, 0x1A, 0x0B, 0x0B, 0x07,
	0x01, 0x00, 0x41, 0x00, 0x0B, 0x01, 0x41,
}

package types

// StateSlot is the unit of contract storage: a (contract, pointer) -> value
// cell. Written only by successful contract execution.
type StateSlot struct {
	Contract ContractAddress
	Pointer  Pointer
	Value    StateValue
}

// StateWrite is a pending write produced by contract execution before it is
// committed to the StorageEngine and folded into the StateTree.
type StateWrite struct {
	Contract ContractAddress
	Pointer  Pointer
	Value    StateValue
}

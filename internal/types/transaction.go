package types

// TxType tags the kind of transaction. Replaces the dynamic/duck-typed event
// shapes of the source system with a fixed tagged-variant taxonomy (§9).
type TxType int

const (
	TxGeneric TxType = iota
	TxDeployment
	TxInteraction
	TxCoinbase
)

func (t TxType) String() string {
	switch t {
	case TxGeneric:
		return "Generic"
	case TxDeployment:
		return "Deployment"
	case TxInteraction:
		return "Interaction"
	case TxCoinbase:
		return "Coinbase"
	default:
		return "Unknown"
	}
}

// TxInput references a previously created output being spent.
type TxInput struct {
	OriginalTxID Hash
	OutputIndex  uint32
}

// TxOutput is a value-bearing output of a transaction.
type TxOutput struct {
	Address    Address
	Value      uint64 // satoshis
	PubKeyHash []byte
}

// InteractionPayload is present on Interaction (and some Deployment)
// transactions: the second-layer contract call extracted from the
// base-chain transaction.
type InteractionPayload struct {
	Contract       ContractAddress
	Calldata       []byte
	GasLimit       uint64
	PriorityFeeSat uint64
	// Preimage and Reward are populated only when the transaction also
	// carries an epoch proposer submission.
	Preimage []byte
	Reward   uint64

	// Deployment-only fields; empty on a pure Interaction.
	DeployBytecode []byte
	SaltHash       Hash
	Seed           []byte
	DeployerPubKey []byte
}

// Event is one entry in a transaction's ordered event log.
type Event struct {
	Contract ContractAddress
	Topic    Hash
	Data     []byte
}

// Transaction is one base-chain transaction carrying an optional second
// layer interaction.
type Transaction struct {
	ID          Hash
	Hash        Hash
	Type        TxType
	Inputs      []TxInput
	Outputs     []TxOutput
	BlockHeight uint64

	Interaction *InteractionPayload

	Events       []Event
	Receipt      []byte
	RevertReason string
	GasUsed      uint64

	// IndexingHash is a stable per-transaction hash used to break ties when
	// ordering independence groups (§4.4); normally equal to Hash, kept
	// distinct so callers can supply a different tie-break source.
	IndexingHash Hash
}

// Succeeded reports whether the transaction completed without a revert.
func (t *Transaction) Succeeded() bool { return t.RevertReason == "" }

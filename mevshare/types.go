package mevshare

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// SendMevBundleArgs is the parameter struct for mev_sendBundle.
type SendMevBundleArgs struct {
	Version   string             `json:"version"`
	Inclusion MevBundleInclusion `json:"inclusion"`
	Body      []MevBundleBody    `json:"body"`
	Validity  MevBundleValidity  `json:"validity"`
	Privacy   *MevBundlePrivacy  `json:"privacy,omitempty"`
	Metadata  *MevBundleMetadata `json:"metadata,omitempty"`
}

type MevBundleInclusion struct {
	BlockNumber hexutil.Uint64 `json:"block"`
	MaxBlock    hexutil.Uint64 `json:"maxBlock,omitempty"`
}

// MevBundleBody is one element of a bundle body. Exactly one of Hash, Tx and
// Bundle must be set: a hash references a transaction already known to the
// relay, a tx carries raw signed bytes, a bundle nests another bundle.
type MevBundleBody struct {
	Hash      *common.Hash       `json:"hash,omitempty"`
	Tx        *hexutil.Bytes     `json:"tx,omitempty"`
	Bundle    *SendMevBundleArgs `json:"bundle,omitempty"`
	CanRevert bool               `json:"canRevert,omitempty"`
}

type MevBundleValidity struct {
	Refund       []RefundConstraint `json:"refund,omitempty"`
	RefundConfig []RefundConfig     `json:"refundConfig,omitempty"`
}

type RefundConstraint struct {
	BodyIdx int `json:"bodyIdx"`
	Percent int `json:"percent"`
}

type RefundConfig struct {
	Address common.Address `json:"address"`
	Percent int            `json:"percent"`
}

type MevBundlePrivacy struct {
	Hints      HintIntent `json:"hints,omitempty"`
	Builders   []string   `json:"builders,omitempty"`
	WantRefund *int       `json:"wantRefund,omitempty"`
}

type MevBundleMetadata struct {
	OriginID string `json:"originId,omitempty"`
}

type SendMevBundleResponse struct {
	BundleHash common.Hash `json:"bundleHash"`
}

// SendPrivateTxArgs is the parameter struct for eth_sendPrivateTransaction.
type SendPrivateTxArgs struct {
	Tx             hexutil.Bytes         `json:"tx"`
	MaxBlockNumber *hexutil.Uint64       `json:"maxBlockNumber,omitempty"`
	Preferences    *PrivateTxPreferences `json:"preferences,omitempty"`
}

type PrivateTxPreferences struct {
	Fast    bool              `json:"fast"`
	Privacy *MevBundlePrivacy `json:"privacy,omitempty"`
}

// SimBundleOverrides overrides the block header data the relay derives the
// simulation state from. All fields default server-side to the parent block.
type SimBundleOverrides struct {
	ParentBlock *hexutil.Uint64 `json:"parentBlock,omitempty"`
	BlockNumber *hexutil.Big    `json:"blockNumber,omitempty"`
	Coinbase    *common.Address `json:"coinbase,omitempty"`
	Timestamp   *hexutil.Uint64 `json:"timestamp,omitempty"`
	GasLimit    *hexutil.Uint64 `json:"gasLimit,omitempty"`
	BaseFee     *hexutil.Big    `json:"baseFee,omitempty"`
	Timeout     *int64          `json:"timeout,omitempty"`
}

type SimMevBundleResponse struct {
	Success         bool             `json:"success"`
	Error           string           `json:"error,omitempty"`
	StateBlock      hexutil.Uint64   `json:"stateBlock"`
	MevGasPrice     hexutil.Big      `json:"mevGasPrice"`
	Profit          hexutil.Big      `json:"profit"`
	RefundableValue hexutil.Big      `json:"refundableValue"`
	GasUsed         hexutil.Uint64   `json:"gasUsed"`
	BodyLogs        []SimMevBodyLogs `json:"logs,omitempty"`
}

type SimMevBodyLogs struct {
	TxLogs     []*types.Log     `json:"txLogs,omitempty"`
	BundleLogs []SimMevBodyLogs `json:"bundleLogs,omitempty"`
}

// Event is the envelope carried by the relay SSE stream and by history
// entries. Hash is the double-blind transaction or bundle hash.
type Event struct {
	Hash        common.Hash     `json:"hash"`
	Logs        []CleanLog      `json:"logs,omitempty"`
	Txs         []EventTx       `json:"txs,omitempty"`
	MevGasPrice *hexutil.Big    `json:"mevGasPrice,omitempty"`
	GasUsed     *hexutil.Uint64 `json:"gasUsed,omitempty"`
}

type EventTx struct {
	Hash             *common.Hash    `json:"hash,omitempty"`
	To               *common.Address `json:"to,omitempty"`
	FunctionSelector *hexutil.Bytes  `json:"functionSelector,omitempty"`
	CallData         *hexutil.Bytes  `json:"callData,omitempty"`
}

type CleanLog struct {
	// address of the contract that generated the event
	Address common.Address `json:"address"`
	// list of topics provided by the contract.
	Topics []common.Hash `json:"topics"`
	// supplied by the contract, usually ABI-encoded
	Data hexutil.Bytes `json:"data"`
}

// EventTxView is the single-transaction projection of an Event, see
// Event.AsTransaction.
type EventTxView struct {
	Hash common.Hash
	Tx   *EventTx
	Log  *CleanLog
}

// AsTransaction classifies the event: an event with no transaction list or a
// single-element list is a transaction; a longer list cannot be classified
// (it can be a bundle, but builders are free to list partial contents), so
// the second return is false.
func (e *Event) AsTransaction() (*EventTxView, bool) {
	var log *CleanLog
	if len(e.Logs) > 0 {
		log = &e.Logs[0]
	}
	switch len(e.Txs) {
	case 0:
		return &EventTxView{Hash: e.Hash, Log: log}, true
	case 1:
		return &EventTxView{Hash: e.Hash, Tx: &e.Txs[0], Log: log}, true
	default:
		return nil, false
	}
}

// EventHistoryInfo describes the range the history endpoint can serve.
type EventHistoryInfo struct {
	MinBlock     uint64 `json:"minBlock"`
	MaxBlock     uint64 `json:"maxBlock"`
	MinTimestamp uint64 `json:"minTimestamp"`
	MaxTimestamp uint64 `json:"maxTimestamp"`
	Count        uint64 `json:"count"`
	MaxLimit     uint64 `json:"maxLimit"`
}

// EventHistoryParams narrows a history query. Nil fields are omitted from the
// query string.
type EventHistoryParams struct {
	BlockStart     *uint64
	BlockEnd       *uint64
	TimestampStart *uint64
	TimestampEnd   *uint64
	Limit          *uint64
	Offset         *uint64
}

type EventHistoryEntry struct {
	Block     uint64 `json:"block"`
	Timestamp uint64 `json:"timestamp"`
	Hint      Event  `json:"hint"`
}

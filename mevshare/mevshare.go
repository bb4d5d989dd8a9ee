// Package mevshare implements a client for the MEV-Share relay.
// Here is a full flow of data through the client:
//
// caller -> Client sends:
//   - private transaction (eth_sendPrivateTransaction)
//   - mev share bundle (mev_sendBundle)
//   - bundle simulation (mev_simBundle)
//
// Client -> jsonrpcclient signs and posts the request to the relay
// Client -> PendingTransaction / PendingBundle tracks the submission
//
//	Pending handle -> Waiter resolves the on-chain outcome against
//	a ChainBackend (receipts + new-head subscription)
//
// Client -> EventStream consumes the relay SSE feed
// Client -> HistoryClient queries past events over REST
package mevshare

const (
	SendBundleEndpointName    = "mev_sendBundle"
	SimBundleEndpointName     = "mev_simBundle"
	SendPrivateTxEndpointName = "eth_sendPrivateTransaction"
	HistoryInfoEndpointName   = "history/info"
	HistoryEndpointName       = "history"
)

const (
	// VersionV1 is the bundle format version the relay currently accepts.
	VersionV1   = "v0.1"
	VersionBeta = "beta-1"

	// TxMaxWaitBlocks is the number of blocks a Flashbots-style relay keeps
	// retrying a private transaction before dropping it. Used as the default
	// wait window when the caller did not set a max block.
	TxMaxWaitBlocks uint64 = 25

	MaxBodySize = 50
)

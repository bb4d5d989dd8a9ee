package mevshare

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEventDecode(t *testing.T) {
	payload := `{
		"hash": "0x1100000000000000000000000000000000000000000000000000000000000000",
		"logs": [{
			"address": "0x2222222222222222222222222222222222222222",
			"topics": ["0x3300000000000000000000000000000000000000000000000000000000000000"],
			"data": "0xdead"
		}],
		"txs": [{
			"to": "0x4444444444444444444444444444444444444444",
			"functionSelector": "0xa9059cbb",
			"callData": "0xa9059cbb0000"
		}],
		"mevGasPrice": "0x3b9aca00",
		"gasUsed": "0x5208"
	}`

	var event Event
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	require.Equal(t, uint8(0x11), event.Hash[0])
	require.Len(t, event.Logs, 1)
	require.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), event.Logs[0].Address)
	require.Len(t, event.Txs, 1)
	require.Equal(t, "0xa9059cbb", event.Txs[0].FunctionSelector.String())
	require.Equal(t, uint64(1000000000), event.MevGasPrice.ToInt().Uint64())
	require.Equal(t, uint64(21000), uint64(*event.GasUsed))
}

func TestEventAsTransaction(t *testing.T) {
	hash := common.HexToHash("0x1100000000000000000000000000000000000000000000000000000000000000")

	noTxs := &Event{Hash: hash}
	view, ok := noTxs.AsTransaction()
	require.True(t, ok)
	require.Equal(t, hash, view.Hash)
	require.Nil(t, view.Tx)

	oneTx := &Event{Hash: hash, Txs: []EventTx{{}}, Logs: []CleanLog{{}}}
	view, ok = oneTx.AsTransaction()
	require.True(t, ok)
	require.NotNil(t, view.Tx)
	require.NotNil(t, view.Log)

	twoTxs := &Event{Hash: hash, Txs: []EventTx{{}, {}}}
	view, ok = twoTxs.AsTransaction()
	require.False(t, ok)
	require.Nil(t, view)
}

func TestSendBundleArgsJSONOmitsEmpty(t *testing.T) {
	bundle := validBundle()
	data, err := json.Marshal(bundle)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "version")
	require.Contains(t, decoded, "inclusion")
	require.Contains(t, decoded, "body")
	require.NotContains(t, decoded, "privacy")
	require.NotContains(t, decoded, "metadata")
}

func TestPrivateTxPreferencesJSONOmitsEmptyPrivacy(t *testing.T) {
	data, err := json.Marshal(&PrivateTxPreferences{Fast: true})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "fast")
	require.NotContains(t, decoded, "privacy")

	data, err = json.Marshal(&PrivateTxPreferences{
		Fast:    true,
		Privacy: &MevBundlePrivacy{Hints: HintHash},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "privacy")
}

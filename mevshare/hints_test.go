package mevshare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHintIntentJSON(t *testing.T) {
	tests := []struct {
		name string
		hint HintIntent
		want string
	}{
		{
			name: "none",
			hint: HintNone,
			want: `[]`,
		},
		{
			name: "single",
			hint: HintLogs,
			want: `["logs"]`,
		},
		{
			name: "all",
			hint: HintContractAddress | HintFunctionSelector | HintLogs | HintCallData | HintHash | HintTxHash,
			want: `["contract_address","function_selector","logs","calldata","hash","tx_hash"]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.hint)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))

			var back HintIntent
			require.NoError(t, json.Unmarshal(data, &back))
			require.Equal(t, tt.hint, back)
		})
	}
}

func TestHintIntentUnmarshalLogVariants(t *testing.T) {
	var hint HintIntent
	require.NoError(t, json.Unmarshal([]byte(`["special_logs","default_logs"]`), &hint))
	require.True(t, hint.HasHint(HintLogs))
}

func TestHintIntentUnmarshalUnknown(t *testing.T) {
	var hint HintIntent
	require.ErrorIs(t, json.Unmarshal([]byte(`["bogus"]`), &hint), ErrInvalidHintIntent)
}

func TestSetHasHint(t *testing.T) {
	var hint HintIntent
	hint.SetHint(HintCallData)
	hint.SetHint(HintHash)
	require.True(t, hint.HasHint(HintCallData))
	require.True(t, hint.HasHint(HintHash))
	require.False(t, hint.HasHint(HintLogs))
}

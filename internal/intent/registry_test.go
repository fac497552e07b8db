package intent

import (
	"testing"

	"stellarid/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  string
		params  map[string]string
		wantErr string
	}{
		{"no params needed", "public_key", nil, ""},
		{"all required present", "pay", map[string]string{"amount": "10", "destination": "GABC"}, ""},
		{"unknown intent", "not_real", nil, `Unknown intent "not_real".`},
		{"missing required", "pay", map[string]string{"destination": "GABC"},
			`Parameter "amount" is required for intent "pay".`},
		{"empty required counts as missing", "sign_msg", map[string]string{"message": ""},
			`Parameter "message" is required for intent "sign_msg".`},
		{"extra params accepted", "sign_msg", map[string]string{"message": "hi", "whatever": "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.intent, tt.params)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
			assert.True(t, model.IsKind(err, model.KindValidation))
		})
	}
}

func TestFilterReturn(t *testing.T) {
	raw := model.Result{
		"pubkey":            "GABC",
		"message":           "hello",
		"message_signature": "sig",
		"secret":            "SBAD", // must never leak
		"intent":            "sign_msg",
	}
	filtered := FilterReturn("sign_msg", raw)
	assert.Equal(t, model.Result{
		"pubkey":            "GABC",
		"message":           "hello",
		"message_signature": "sig",
	}, filtered)

	assert.Empty(t, FilterReturn("not_real", raw))
}

func TestRegistryShape(t *testing.T) {
	require.ElementsMatch(t, []string{
		"public_key", "basic_info", "authenticate", "sign_msg", "verify_msg",
		"tx", "pay", "trust", "inflation_vote",
	}, Names())

	tx, ok := Get("tx")
	require.True(t, ok)
	assert.Equal(t, RiskHigh, tx.Risk)
	assert.True(t, tx.Unsafe)

	info, ok := Get("basic_info")
	require.True(t, ok)
	assert.True(t, info.TouchesPersonalData)
}

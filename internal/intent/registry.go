// Package intent defines the static registry of operations a third-party
// application may request. The registry is a pure lookup table: it performs
// no I/O and has no mutable state.
package intent

import (
	"sort"

	"stellarid/internal/model"
)

// RiskLevel classifies how dangerous an intent is for the user.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Descriptor describes one supported intent. Instances are immutable.
type Descriptor struct {
	Name string
	Risk RiskLevel
	// TouchesPersonalData marks intents that disclose user info (email, avatar).
	TouchesPersonalData bool
	// Unsafe marks intents that can execute arbitrary ledger effects.
	Unsafe   bool
	Required []string
	Optional []string
	Returns  []string
}

var registry = map[string]Descriptor{
	"public_key": {
		Name:    "public_key",
		Risk:    RiskLow,
		Returns: []string{"pubkey"},
	},
	"basic_info": {
		Name:                "basic_info",
		Risk:                RiskLow,
		TouchesPersonalData: true,
		Returns:             []string{"info"},
	},
	"authenticate": {
		Name:     "authenticate",
		Risk:     RiskLow,
		Required: []string{"token"},
		Returns:  []string{"pubkey", "token", "token_signature"},
	},
	"sign_msg": {
		Name:     "sign_msg",
		Risk:     RiskMedium,
		Required: []string{"message"},
		Optional: []string{"pubkey"},
		Returns:  []string{"pubkey", "message", "message_signature"},
	},
	"verify_msg": {
		Name:     "verify_msg",
		Risk:     RiskLow,
		Required: []string{"message", "message_signature"},
		Optional: []string{"pubkey"},
		Returns:  []string{"pubkey", "message", "message_signature", "confirmed"},
	},
	"tx": {
		Name:     "tx",
		Risk:     RiskHigh,
		Unsafe:   true,
		Required: []string{"xdr"},
		Optional: []string{"pubkey", "network", "horizon"},
		Returns:  []string{"xdr", "signed_envelope_xdr", "pubkey", "tx_signature", "network", "prepare"},
	},
	"pay": {
		Name:     "pay",
		Risk:     RiskMedium,
		Required: []string{"amount", "destination"},
		Optional: []string{"asset_code", "asset_issuer", "memo", "memo_type", "network", "horizon", "prepare"},
		Returns: []string{"amount", "destination", "asset_code", "asset_issuer", "memo", "memo_type",
			"pubkey", "network", "horizon"},
	},
	"trust": {
		Name:     "trust",
		Risk:     RiskLow,
		Required: []string{"asset_code", "asset_issuer"},
		Optional: []string{"limit", "pubkey", "network", "horizon", "prepare"},
		Returns:  []string{"asset_code", "asset_issuer", "limit", "pubkey", "network", "horizon"},
	},
	"inflation_vote": {
		Name:     "inflation_vote",
		Risk:     RiskMedium,
		Required: []string{"destination"},
		Optional: []string{"pubkey", "network", "horizon", "prepare"},
		Returns:  []string{"destination", "pubkey", "network", "horizon"},
	},
}

// Get looks up a descriptor by intent name.
func Get(name string) (Descriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names returns all registered intent names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the request shape against the registry. Unknown extra
// params are accepted (the normalizer may understand them later).
func Validate(name string, params map[string]string) error {
	d, ok := registry[name]
	if !ok {
		return model.Validationf("Unknown intent %q.", name)
	}
	for _, required := range d.Required {
		if params[required] == "" {
			return model.Validationf("Parameter %q is required for intent %q.", required, name)
		}
	}
	return nil
}

// FilterReturn restricts a raw intent result to the declared return fields.
// Anything beyond the whitelist is silently dropped.
func FilterReturn(name string, raw model.Result) model.Result {
	d, ok := registry[name]
	if !ok {
		return model.Result{}
	}
	filtered := make(model.Result, len(d.Returns))
	for _, field := range d.Returns {
		if value, present := raw[field]; present {
			filtered[field] = value
		}
	}
	return filtered
}

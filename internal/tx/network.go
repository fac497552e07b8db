package tx

import (
	"strings"

	"stellarid/internal/model"

	"github.com/stellar/go/network"
)

// Network identifies the ledger network a transaction is built for.
type Network struct {
	// Name is the caller-supplied identifier ("public", "testnet" or a
	// private network passphrase).
	Name       string
	Passphrase string
	Horizon    string
}

const (
	defaultPublicHorizon  = "https://horizon.stellar.org"
	defaultTestnetHorizon = "https://horizon-testnet.stellar.org"
)

// ResolveNetwork maps a free-form network identifier to a passphrase and a
// Horizon server. Unknown identifiers are treated as private network
// passphrases and require an explicit horizon parameter.
func ResolveNetwork(name, horizon string) (Network, error) {
	if name == "" {
		name = "public"
	}
	switch strings.ToLower(name) {
	case "public":
		if horizon == "" {
			horizon = defaultPublicHorizon
		}
		return Network{Name: "public", Passphrase: network.PublicNetworkPassphrase, Horizon: horizon}, nil
	case "testnet":
		if horizon == "" {
			horizon = defaultTestnetHorizon
		}
		return Network{Name: "testnet", Passphrase: network.TestNetworkPassphrase, Horizon: horizon}, nil
	}
	if horizon == "" {
		return Network{}, model.Validationf("Parameter %q is required for the non-standard networks.", "horizon")
	}
	return Network{Name: name, Passphrase: name, Horizon: horizon}, nil
}

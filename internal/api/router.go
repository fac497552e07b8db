package api

import (
	"net/http"

	"stellarid/internal/client"
	"stellarid/internal/config"
	"stellarid/internal/confirm"
	"stellarid/internal/handler"
	"stellarid/internal/vault"

	"github.com/plan-systems/klog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// logAlerter surfaces terminal delivery failures in the server log; the HTTP
// surface has no opener window to alert.
type logAlerter struct{}

func (logAlerter) Alert(message string) {
	klog.Warningf("intent delivery failed: %s", message)
}

// SetupRouter sets up router with handlers
func SetupRouter(manager *vault.Manager) http.Handler {
	responder := confirm.NewResponder(func(network, horizonURL string) client.Ledger {
		return client.NewHorizonClient(network, horizonURL)
	})
	responder.DefaultHorizon = config.GetHorizonURL()
	dispatcher := confirm.NewDispatcher(nil, logAlerter{})
	confirmHandler := handler.NewConfirmHandler(manager, responder, dispatcher)
	accountsHandler := handler.NewAccountsHandler(manager)

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Confirmation surface
	mux.HandleFunc("/confirm", confirmHandler.Handle)

	// Vault management
	mux.HandleFunc("/accounts", accountsHandler.Handle)
	mux.HandleFunc("/accounts/keypairs", accountsHandler.Keypairs)
	mux.HandleFunc("/accounts/signout", accountsHandler.SignOut)

	return mux
}

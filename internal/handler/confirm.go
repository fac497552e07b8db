package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"stellarid/internal/confirm"
	"stellarid/internal/intent"
	"stellarid/internal/model"
	"stellarid/internal/vault"
)

// ConfirmHandler exposes the confirmation flow over HTTP
type ConfirmHandler struct {
	manager    *vault.Manager
	responder  *confirm.Responder
	dispatcher *confirm.Dispatcher
}

// NewConfirmHandler creates a new ConfirmHandler
func NewConfirmHandler(manager *vault.Manager, responder *confirm.Responder,
	dispatcher *confirm.Dispatcher) *ConfirmHandler {
	return &ConfirmHandler{manager: manager, responder: responder, dispatcher: dispatcher}
}

// Handle routes GET and POST /confirm
func (h *ConfirmHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.describe(w, r)
	case http.MethodPost:
		h.confirm(w, r)
	default:
		http.Error(w, "Method not allowed. Should be GET or POST", http.StatusMethodNotAllowed)
	}
}

// describe handles GET /confirm
// @Summary      Describe an intent request
// @Description  Parses and validates an intent request without executing it
// @Tags         confirm
// @Produce      json
// @Param        intent  query     string  true  "Intent name"
// @Success      200     {object}  model.ConfirmDescription
// @Router       /confirm [get]
func (h *ConfirmHandler) describe(w http.ResponseWriter, r *http.Request) {
	a := confirm.ParseContext(r.URL.RawQuery, r.Header.Get("Referer"))

	desc := model.ConfirmDescription{
		Intent:          a.Intent,
		AppName:         a.AppName(),
		AppOrigin:       a.AppOrigin(),
		RequestedPubkey: a.RequestedPublicKey,
	}
	if d, ok := intent.Get(a.Intent); ok {
		desc.Risk = string(d.Risk)
		desc.PersonalData = d.TouchesPersonalData
		desc.Unsafe = d.Unsafe
		desc.Returns = d.Returns
	}
	if a.IntentError != nil {
		desc.Error = a.IntentError.Error()
	}

	writeJSON(w, http.StatusOK, desc)
}

// confirm handles POST /confirm
// @Summary      Confirm or reject an intent request
// @Description  Unlocks the account, executes the intent reaction and returns the filtered result
// @Tags         confirm
// @Accept       json
// @Produce      json
// @Param        request  body      model.ConfirmRequest  true  "Confirmation data"
// @Success      200      {object}  model.Result
// @Router       /confirm [post]
func (h *ConfirmHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("Invalid request body."))
		return
	}

	a := confirm.ParseContext(req.Query, r.Header.Get("Referer"))
	if a.IntentError != nil {
		h.reject(w, a, a.IntentError)
		return
	}
	if !req.Confirm {
		h.reject(w, a, nil)
		return
	}

	account, err := h.resolveAccount(r, &req, a)
	if err != nil {
		h.reject(w, a, err)
		return
	}
	if err := a.SelectAccount(account); err != nil {
		h.reject(w, a, err)
		return
	}
	kp, err := pickKeypair(account, req.Pubkey, a.RequestedPublicKey)
	if err != nil {
		h.reject(w, a, err)
		return
	}
	if err := a.SelectKeypair(kp); err != nil {
		h.reject(w, a, err)
		return
	}

	res, err := a.Confirm(r.Context(), h.responder)
	if err != nil {
		h.reject(w, a, err)
		return
	}

	filtered := intent.FilterReturn(a.Intent, res)
	filtered["intent"] = a.Intent

	// callback mode posts the result to the endpoint the caller named; the
	// surface itself only learns that delivery happened
	if a.Callback != "" {
		if err := h.dispatcher.DispatchResponse(r.Context(), a, filtered); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.Result{
			"intent":                 a.Intent,
			"delivered_via_callback": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, filtered)
}

// reject routes a rejection both to the HTTP surface and, in callback mode,
// through the dispatcher's degradation ladder.
func (h *ConfirmHandler) reject(w http.ResponseWriter, a *confirm.ActionContext, reason error) {
	err := a.Reject(reason)
	if a.Callback != "" {
		h.dispatcher.DispatchError(a, err)
	}
	writeError(w, err)
}

func (h *ConfirmHandler) resolveAccount(r *http.Request, req *model.ConfirmRequest,
	a *confirm.ActionContext) (*vault.Account, error) {

	if a.DemoMode {
		return h.manager.EnsureDemoAccount(r.Context())
	}

	account := h.manager.Get(req.Email)
	if account == nil {
		return nil, model.Credentialf("Account %q not found.", req.Email)
	}
	if !account.Unlocked() {
		duration := time.Duration(req.SessionDurationSeconds) * time.Second
		if err := h.manager.Unlock(account, req.Password, duration); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// pickKeypair resolves the signing keypair: an explicit choice wins, then the
// caller's requested address, then the first stored keypair.
func pickKeypair(account *vault.Account, chosen, requested string) (*vault.Keypair, error) {
	for _, address := range []string{chosen, requested} {
		if address == "" {
			continue
		}
		if kp := account.KeypairFor(address); kp != nil {
			return kp, nil
		}
		return nil, model.Validationf("Account has no keypair with address %q.", address)
	}
	keypairs := account.Keypairs()
	if len(keypairs) == 0 {
		return nil, model.Validationf("Account has no keypairs.")
	}
	return keypairs[0], nil
}

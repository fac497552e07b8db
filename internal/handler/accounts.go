package handler

import (
	"encoding/json"
	"net/http"

	"stellarid/internal/model"
	"stellarid/internal/vault"
)

// AccountsHandler exposes vault account management over HTTP
type AccountsHandler struct {
	manager *vault.Manager
}

// NewAccountsHandler creates a new AccountsHandler
func NewAccountsHandler(manager *vault.Manager) *AccountsHandler {
	return &AccountsHandler{manager: manager}
}

// Handle routes GET and POST /accounts
func (h *AccountsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "Method not allowed. Should be GET or POST", http.StatusMethodNotAllowed)
	}
}

// list handles GET /accounts
// @Summary      List accounts
// @Description  Lists the public view of all stored accounts
// @Tags         accounts
// @Produce      json
// @Success      200  {array}  model.AccountInfo
// @Router       /accounts [get]
func (h *AccountsHandler) list(w http.ResponseWriter, _ *http.Request) {
	accounts := h.manager.List()
	infos := make([]model.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, a.Info())
	}
	writeJSON(w, http.StatusOK, infos)
}

// create handles POST /accounts
// @Summary      Create account
// @Description  Creates and persists a new account protected by the given password
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateAccountRequest  true  "Account credentials"
// @Success      200      {object}  model.AccountInfo
// @Router       /accounts [post]
func (h *AccountsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("Invalid request body."))
		return
	}

	account, err := h.manager.Create(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.manager.Save(r.Context(), account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Info())
}

// Keypairs routes POST and DELETE /accounts/keypairs
func (h *AccountsHandler) Keypairs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addKeypair(w, r)
	case http.MethodDelete:
		h.removeKeypair(w, r)
	default:
		http.Error(w, "Method not allowed. Should be POST or DELETE", http.StatusMethodNotAllowed)
	}
}

// addKeypair handles POST /accounts/keypairs
// @Summary      Add keypair
// @Description  Adds a secret key to an account, unlocking it first when a password is given
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.KeypairRequest  true  "Keypair data"
// @Success      200      {array}   model.KeypairInfo
// @Router       /accounts/keypairs [post]
func (h *AccountsHandler) addKeypair(w http.ResponseWriter, r *http.Request) {
	account, req, err := h.unlockedAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}

	kp := &vault.Keypair{Secret: req.Secret, FriendlyName: req.FriendlyName}
	if err := h.manager.AddKeypair(r.Context(), account, kp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keypairInfos(account))
}

// removeKeypair handles DELETE /accounts/keypairs
// @Summary      Remove keypair
// @Description  Removes the keypair with the given address from an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.KeypairRequest  true  "Keypair address"
// @Success      200      {array}   model.KeypairInfo
// @Router       /accounts/keypairs [delete]
func (h *AccountsHandler) removeKeypair(w http.ResponseWriter, r *http.Request) {
	account, req, err := h.unlockedAccount(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.manager.RemoveKeypair(r.Context(), account, req.Address); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keypairInfos(account))
}

// SignOut handles POST /accounts/signout
// @Summary      Sign out
// @Description  Locks the account and expires any persisted session
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request  body      model.SignOutRequest  true  "Account email"
// @Success      200      {object}  model.AccountInfo
// @Router       /accounts/signout [post]
func (h *AccountsHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.SignOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("Invalid request body."))
		return
	}

	account := h.manager.Get(req.Email)
	if account == nil {
		writeError(w, model.Credentialf("Account %q not found.", req.Email))
		return
	}
	if err := h.manager.SignOut(account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Info())
}

// unlockedAccount decodes a keypair request and returns the matching account,
// unlocked with the supplied password when necessary.
func (h *AccountsHandler) unlockedAccount(r *http.Request) (*vault.Account, *model.KeypairRequest, error) {
	var req model.KeypairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, model.Validationf("Invalid request body.")
	}

	account := h.manager.Get(req.Email)
	if account == nil {
		return nil, nil, model.Credentialf("Account %q not found.", req.Email)
	}
	if !account.Unlocked() {
		if err := h.manager.Unlock(account, req.Password, 0); err != nil {
			return nil, nil, err
		}
	}
	return account, &req, nil
}

func keypairInfos(account *vault.Account) []model.KeypairInfo {
	keypairs := account.Keypairs()
	infos := make([]model.KeypairInfo, 0, len(keypairs))
	for _, kp := range keypairs {
		infos = append(infos, model.KeypairInfo{
			Address:      kp.Address(),
			FriendlyName: kp.FriendlyName,
			DisplayName:  kp.DisplayName(),
		})
	}
	return infos
}

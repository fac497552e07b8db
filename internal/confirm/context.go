// Package confirm drives the confirmation side of the intent protocol: it
// parses an incoming request into an action context, walks it through an
// explicit state machine (parsed, account selected, keypair selected,
// confirmed or rejected) and dispatches the outcome back to the caller.
package confirm

import (
	"context"
	"net/url"

	"stellarid/internal/intent"
	"stellarid/internal/model"
	"stellarid/internal/vault"

	"github.com/stellar/go/strkey"
)

// State is the lifecycle phase of an action context. Transitions are strictly
// forward; a rejected or finished context cannot be reused.
type State int

const (
	StateParsed State = iota
	StateAccountSelected
	StateReady
	StateFinished
	StateRejected
)

// ActionContext is one confirmation session. It owns exactly one selected
// account and keypair reference for its whole lifetime.
type ActionContext struct {
	Intent string
	// RequestedPublicKey is the caller's address hint from the "account" (or
	// legacy "pubkey") parameter.
	RequestedPublicKey string
	// Data holds all remaining request parameters plus the server-derived
	// app_origin and defaulted app_name.
	Data     map[string]string
	Callback string
	DemoMode bool

	SelectedAccount *vault.Account
	SelectedKeypair *vault.Keypair

	state State
	// IntentError is the validation error recorded while parsing; a context
	// with a non-nil IntentError can only be rejected.
	IntentError error
}

// ParseContext builds an action context from the confirmation surface query
// string. referrer identifies the requesting application origin; it is
// derived server-side and never trusted from the caller. Validation problems
// are recorded in IntentError rather than returned, so the surface can still
// display what was requested.
func ParseContext(rawQuery, referrer string) *ActionContext {
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		params = url.Values{}
	}
	// single opaque link form, used by SEP-0007 style deep links
	if encoded := params.Get("encoded"); encoded != "" {
		if inner, err := url.ParseQuery(encoded); err == nil {
			params = inner
		}
	}

	data := make(map[string]string, len(params))
	for key := range params {
		data[key] = params.Get(key)
	}

	a := &ActionContext{
		Intent:   data["intent"],
		Data:     data,
		Callback: data["callback"],
		DemoMode: data["demo_mode"] != "",
		state:    StateParsed,
	}
	delete(data, "intent")
	delete(data, "demo_mode")

	a.RequestedPublicKey = data["account"]
	if a.RequestedPublicKey == "" {
		a.RequestedPublicKey = data["pubkey"]
	}
	delete(data, "account")

	data["app_origin"] = originOf(referrer)
	if data["app_name"] == "" {
		data["app_name"] = "unknown"
	}

	a.IntentError = a.validate()
	return a
}

func originOf(referrer string) string {
	if referrer == "" {
		return "origin unknown"
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "origin unknown"
	}
	return parsed.Scheme + "://" + parsed.Host
}

func (a *ActionContext) validate() error {
	if a.Intent == "" {
		return model.Validationf("Parameter %q is required.", "intent")
	}
	if a.RequestedPublicKey != "" && !strkey.IsValidEd25519PublicKey(a.RequestedPublicKey) {
		return model.Validationf("Invalid %q parameter. Stellar account public key expected.", "account")
	}
	descriptor, ok := intent.Get(a.Intent)
	if !ok {
		return model.Validationf("Unknown intent %q.", a.Intent)
	}
	for _, required := range descriptor.Required {
		if a.Data[required] == "" {
			return model.Validationf("Parameter %q is required.", required)
		}
	}
	return nil
}

// State returns the current lifecycle phase.
func (a *ActionContext) State() State {
	return a.state
}

// AppName is the requesting application's display name.
func (a *ActionContext) AppName() string {
	return a.Data["app_name"]
}

// AppOrigin is the requesting application's origin, or "origin unknown".
func (a *ActionContext) AppOrigin() string {
	return a.Data["app_origin"]
}

// SelectAccount binds the user's chosen account to the context.
func (a *ActionContext) SelectAccount(account *vault.Account) error {
	if a.IntentError != nil {
		return a.IntentError
	}
	if a.state != StateParsed {
		return model.Protocolf("Account already selected for this request.")
	}
	a.SelectedAccount = account
	a.state = StateAccountSelected
	return nil
}

// SelectKeypair binds a signing keypair of the selected account. The account
// must be unlocked first; a locked account has no keypairs to choose from.
func (a *ActionContext) SelectKeypair(kp *vault.Keypair) error {
	if a.state != StateAccountSelected {
		return model.Protocolf("An account must be selected and unlocked first.")
	}
	if !a.SelectedAccount.Unlocked() {
		return model.Credentialf("Account is encrypted.")
	}
	if kp == nil {
		return model.Validationf("No keypair selected.")
	}
	a.SelectedKeypair = kp
	a.state = StateReady
	return nil
}

// Confirm executes the intent reaction. It runs at most once per context and
// only after a keypair has been selected.
func (a *ActionContext) Confirm(ctx context.Context, responder *Responder) (model.Result, error) {
	if a.IntentError != nil {
		return nil, a.IntentError
	}
	if a.state != StateReady {
		return nil, model.Protocolf("Request is not ready for confirmation.")
	}
	a.state = StateFinished
	res, err := responder.Confirm(ctx, a)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reject marks the context rejected. A nil reason means the user declined.
func (a *ActionContext) Reject(reason error) error {
	if reason == nil {
		reason = model.ErrRejectedByUser
	}
	a.state = StateRejected
	return reason
}

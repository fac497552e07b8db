// Package intent is the caller-side SDK: third-party applications use it to
// request identity and signing operations from the confirmation surface
// without ever touching the user's keys. Responses are filtered to the
// fields the intent registry declares for each operation.
package intent

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"

	registry "stellarid/internal/intent"
	"stellarid/internal/model"
)

// Dispatcher delivers a request to the confirmation surface and waits for
// the response. broker.Broker is the production implementation.
type Dispatcher interface {
	Open(ctx context.Context, req model.IntentRequest) (model.Result, error)
}

// App identifies the requesting application to the user.
type App struct {
	Name        string
	Description string
}

// Options tunes an individual request. Only these fields may be forwarded;
// anything else an application tries to smuggle in is dropped.
type Options struct {
	// Network is a ledger network identifier or a private network passphrase.
	Network string
	// Horizon overrides the ledger RPC server URL.
	Horizon string
	// Prepare returns the signed envelope instead of submitting it.
	Prepare bool
	// Pubkey requests a specific user account address.
	Pubkey string
	// DemoMode targets the built-in demo account, for integration testing.
	DemoMode bool
	// Callback switches to callback delivery, scheme "url:<endpoint>".
	Callback string
}

var pubkeyPattern = regexp.MustCompile(`^G[0-9A-Z]{55}$`)

// Requester issues intent requests on behalf of one application.
type Requester struct {
	app        App
	dispatcher Dispatcher
}

// New creates a Requester for the application.
func New(app App, dispatcher Dispatcher) *Requester {
	return &Requester{app: app, dispatcher: dispatcher}
}

// Request validates params against the intent registry, dispatches the
// request and returns the response restricted to the declared return fields.
func (r *Requester) Request(ctx context.Context, params map[string]string, opts *Options) (model.Result, error) {
	if params == nil {
		return nil, model.Validationf("Intent parameters expected.")
	}
	name := params["intent"]
	if name == "" {
		return nil, model.Validationf("Parameter %q is required.", "intent")
	}
	if pubkey := params["pubkey"]; pubkey != "" && !pubkeyPattern.MatchString(pubkey) {
		return nil, model.Validationf("Invalid %q parameter. Stellar account public key expected.", "pubkey")
	}
	descriptor, ok := registry.Get(name)
	if !ok {
		return nil, model.Validationf("Unknown intent: %q.", name)
	}
	if err := registry.Validate(name, params); err != nil {
		return nil, err
	}

	request := model.IntentRequest{
		Intent:         name,
		Params:         map[string]string{},
		AppName:        r.app.Name,
		AppDescription: r.app.Description,
	}
	if request.AppName == "" {
		request.AppName = "Unknown Application"
	}
	if request.AppDescription == "" {
		request.AppDescription = "No description"
	}
	for _, key := range descriptor.Required {
		request.Params[key] = params[key]
	}
	for _, key := range descriptor.Optional {
		if value := params[key]; value != "" {
			request.Params[key] = value
		}
	}
	applyOptions(&request, opts)

	raw, err := r.dispatcher.Open(ctx, request)
	if err != nil {
		return nil, err
	}
	return registry.FilterReturn(name, raw), nil
}

func applyOptions(request *model.IntentRequest, opts *Options) {
	if opts == nil {
		return
	}
	set := func(key, value string) {
		if value != "" {
			request.Params[key] = value
		}
	}
	set("network", opts.Network)
	set("horizon", opts.Horizon)
	set("pubkey", opts.Pubkey)
	if opts.Prepare {
		request.Params["prepare"] = "1"
	}
	if opts.DemoMode {
		request.Params["demo_mode"] = "1"
	}
	request.Callback = opts.Callback
}

// PublicKey requests the user's account address, for unverified
// authentication.
func (r *Requester) PublicKey(ctx context.Context, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{"intent": "public_key"}, opts)
}

// BasicInfo requests the user's email and avatar.
func (r *Requester) BasicInfo(ctx context.Context, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{"intent": "basic_info"}, opts)
}

// Authenticate requests verified authentication. The signed token is the
// application nonce with a random suffix, so a replayed response never
// matches a fresh challenge.
func (r *Requester) Authenticate(ctx context.Context, nonce string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent": "authenticate",
		"token":  nonce + GenerateAuthenticationToken(),
	}, opts)
}

// SignMessage requests a detached signature over an arbitrary message.
func (r *Requester) SignMessage(ctx context.Context, message string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent":  "sign_msg",
		"message": message,
	}, opts)
}

// VerifyMessage requests verification of a signature produced by SignMessage.
func (r *Requester) VerifyMessage(ctx context.Context, message, messageSignature string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent":            "verify_msg",
		"message":           message,
		"message_signature": messageSignature,
	}, opts)
}

// SignTransaction requests signing of a base64 transaction envelope.
func (r *Requester) SignTransaction(ctx context.Context, envelopeXDR string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent": "tx",
		"xdr":    envelopeXDR,
	}, opts)
}

// Payment describes a pay intent.
type Payment struct {
	Destination string
	Amount      string
	// AssetCode and AssetIssuer are empty for the native asset.
	AssetCode   string
	AssetIssuer string
	Memo        string
	MemoType    string
}

// Pay requests a payment.
func (r *Requester) Pay(ctx context.Context, payment Payment, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent":       "pay",
		"destination":  payment.Destination,
		"amount":       payment.Amount,
		"asset_code":   payment.AssetCode,
		"asset_issuer": payment.AssetIssuer,
		"memo":         payment.Memo,
		"memo_type":    payment.MemoType,
	}, opts)
}

// Trust requests a trustline creation. An empty limit means the maximum.
func (r *Requester) Trust(ctx context.Context, assetCode, assetIssuer, limit string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent":       "trust",
		"asset_code":   assetCode,
		"asset_issuer": assetIssuer,
		"limit":        limit,
	}, opts)
}

// InflationVote requests an inflation pool vote.
func (r *Requester) InflationVote(ctx context.Context, destination string, opts *Options) (model.Result, error) {
	return r.Request(ctx, map[string]string{
		"intent":      "inflation_vote",
		"destination": destination,
	}, opts)
}

// GenerateAuthenticationToken produces a random challenge suffix.
func GenerateAuthenticationToken() string {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

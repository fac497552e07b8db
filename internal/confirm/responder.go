package confirm

import (
	"context"
	"encoding/hex"
	"strings"

	"stellarid/internal/client"
	"stellarid/internal/model"
	"stellarid/internal/tx"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// LedgerFactory creates a ledger RPC client for a named network and Horizon
// URL. Tests inject a fake; production wires client.NewHorizonClient.
type LedgerFactory func(network, horizonURL string) client.Ledger

type reaction func(ctx context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error)

// Responder maps intents to their reactions. The reaction table is fixed at
// construction and never mutated.
type Responder struct {
	ledger    LedgerFactory
	reactions map[string]reaction

	// DefaultHorizon overrides the public network Horizon server for
	// requests that do not name one.
	DefaultHorizon string
}

// NewResponder creates a Responder with the full reaction table.
func NewResponder(ledger LedgerFactory) *Responder {
	r := &Responder{ledger: ledger}
	r.reactions = map[string]reaction{
		"public_key":     r.publicKey,
		"basic_info":     r.basicInfo,
		"authenticate":   r.authenticate,
		"sign_msg":       r.signMessage,
		"verify_msg":     r.verifyMessage,
		"tx":             r.signTransaction,
		"pay":            r.pay,
		"trust":          r.trust,
		"inflation_vote": r.inflationVote,
	}
	return r
}

// Confirm executes the reaction for the context's intent with the selected
// keypair. The intent name is stamped into the result so callers can match
// responses without extra state.
func (r *Responder) Confirm(ctx context.Context, a *ActionContext) (model.Result, error) {
	action, ok := r.reactions[a.Intent]
	if !ok {
		return nil, model.Validationf("Unknown intent %q.", a.Intent)
	}
	kp, err := keypair.ParseFull(a.SelectedKeypair.Secret)
	if err != nil {
		return nil, model.ErrInvalidSecretKey
	}
	res, err := action(ctx, a, kp)
	if err != nil {
		return nil, err
	}
	res["intent"] = a.Intent
	return res, nil
}

func (r *Responder) publicKey(_ context.Context, _ *ActionContext, kp *keypair.Full) (model.Result, error) {
	return model.Result{"pubkey": kp.Address()}, nil
}

func (r *Responder) basicInfo(_ context.Context, a *ActionContext, _ *keypair.Full) (model.Result, error) {
	return model.Result{"info": model.BasicInfo{
		Email:  a.SelectedAccount.Email,
		Avatar: a.SelectedAccount.Avatar,
	}}, nil
}

// authenticate and signMessage both sign the concatenation of the signer's
// address and the payload, tying the signature to the identity that produced
// it.
func (r *Responder) authenticate(_ context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	token := a.Data["token"]
	signature, err := kp.Sign([]byte(kp.Address() + token))
	if err != nil {
		return nil, model.Credentialf("Failed to sign an authentication token.")
	}
	return model.Result{
		"pubkey":          kp.Address(),
		"token":           token,
		"token_signature": hex.EncodeToString(signature),
	}, nil
}

func (r *Responder) signMessage(_ context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	message := a.Data["message"]
	signature, err := kp.Sign([]byte(kp.Address() + message))
	if err != nil {
		return nil, model.Credentialf("Failed to sign a message.")
	}
	return model.Result{
		"pubkey":            kp.Address(),
		"message":           message,
		"message_signature": hex.EncodeToString(signature),
	}, nil
}

func (r *Responder) verifyMessage(_ context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	message := a.Data["message"]
	rawSignature, err := hex.DecodeString(a.Data["message_signature"])
	if err != nil {
		return nil, model.Validationf("Invalid message signature.")
	}
	if err := kp.Verify([]byte(kp.Address()+message), rawSignature); err != nil {
		return nil, model.Protocolf("Invalid message signature.")
	}
	return model.Result{
		"pubkey":            kp.Address(),
		"message":           message,
		"message_signature": a.Data["message_signature"],
		"confirmed":         true,
	}, nil
}

// envelopeBuilder produces a base64 unsigned envelope for the signer.
type envelopeBuilder func(ctx context.Context, n *tx.Normalizer, ledger client.Ledger, kp *keypair.Full) (string, error)

// processTransaction is shared by all ledger intents: resolve the network,
// build or normalize the envelope, sign, then either submit it or return the
// signed envelope with a detached signature. Submission is skipped in
// callback and prepare modes, where the caller relays the envelope itself.
func (r *Responder) processTransaction(ctx context.Context, a *ActionContext, kp *keypair.Full,
	build envelopeBuilder) (model.Result, error) {

	horizon := a.Data["horizon"]
	if horizon == "" && isPublicNetwork(a.Data["network"]) {
		horizon = r.DefaultHorizon
	}
	net, err := tx.ResolveNetwork(a.Data["network"], horizon)
	if err != nil {
		return nil, err
	}
	ledger := r.ledger(net.Name, net.Horizon)
	normalizer := &tx.Normalizer{Passphrase: net.Passphrase}

	envelope, err := build(ctx, normalizer, ledger, kp)
	if err != nil {
		return nil, err
	}

	submit := a.Callback == "" && a.Data["prepare"] == ""
	finalized, err := normalizer.Finalize(ctx, ledger, envelope, kp, submit)
	if err != nil {
		return nil, err
	}

	res := model.Result{
		"pubkey":  kp.Address(),
		"network": net.Name,
	}
	if finalized.Submitted {
		res["tx_hash"] = finalized.TxHash
		res["horizon"] = finalized.Horizon
	} else {
		res["signed_envelope_xdr"] = finalized.SignedEnvelopeXDR
		res["tx_signature"] = finalized.TxSignature
	}
	return res, nil
}

func isPublicNetwork(name string) bool {
	return name == "" || strings.EqualFold(name, "public")
}

func (r *Responder) signTransaction(ctx context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	envelopeXDR := a.Data["xdr"]
	res, err := r.processTransaction(ctx, a, kp,
		func(ctx context.Context, n *tx.Normalizer, ledger client.Ledger, kp *keypair.Full) (string, error) {
			return n.NormalizeIncoming(ctx, ledger, envelopeXDR, kp.Address())
		})
	if err != nil {
		return nil, err
	}
	res["xdr"] = envelopeXDR
	return res, nil
}

func (r *Responder) pay(ctx context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	amount, destination := a.Data["amount"], a.Data["destination"]
	assetCode, assetIssuer := a.Data["asset_code"], a.Data["asset_issuer"]
	memo, memoType := a.Data["memo"], a.Data["memo_type"]

	res, err := r.processTransaction(ctx, a, kp,
		func(ctx context.Context, n *tx.Normalizer, ledger client.Ledger, kp *keypair.Full) (string, error) {
			op := tx.PaymentOp(destination, amount, assetCode, assetIssuer)
			return n.Build(ctx, ledger, kp.Address(), []txnbuild.Operation{op}, memo, memoType)
		})
	if err != nil {
		return nil, err
	}
	res["amount"] = amount
	res["destination"] = destination
	res["asset_code"] = assetCode
	res["asset_issuer"] = assetIssuer
	res["memo"] = memo
	res["memo_type"] = memoType
	return res, nil
}

func (r *Responder) trust(ctx context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	assetCode, assetIssuer := a.Data["asset_code"], a.Data["asset_issuer"]
	limit := a.Data["limit"]
	if limit == "" {
		limit = txnbuild.MaxTrustlineLimit
	}

	res, err := r.processTransaction(ctx, a, kp,
		func(ctx context.Context, n *tx.Normalizer, ledger client.Ledger, kp *keypair.Full) (string, error) {
			op := tx.TrustOp(assetCode, assetIssuer, limit)
			return n.Build(ctx, ledger, kp.Address(), []txnbuild.Operation{op}, "", "")
		})
	if err != nil {
		return nil, err
	}
	res["asset_code"] = assetCode
	res["asset_issuer"] = assetIssuer
	res["limit"] = limit
	return res, nil
}

func (r *Responder) inflationVote(ctx context.Context, a *ActionContext, kp *keypair.Full) (model.Result, error) {
	destination := a.Data["destination"]

	res, err := r.processTransaction(ctx, a, kp,
		func(ctx context.Context, n *tx.Normalizer, ledger client.Ledger, kp *keypair.Full) (string, error) {
			op := tx.InflationVoteOp(destination)
			return n.Build(ctx, ledger, kp.Address(), []txnbuild.Operation{op}, "", "")
		})
	if err != nil {
		return nil, err
	}
	res["destination"] = destination
	return res, nil
}

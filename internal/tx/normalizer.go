// Package tx builds, normalizes and finalizes ledger transactions. Incoming
// envelopes may be templates: a sentinel source account (derived from the
// all-zero seed) and a zero sequence number are rewritten to the signer's
// real values before signing, so callers can request signatures without
// knowing the user's identity in advance.
package tx

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"stellarid/internal/client"
	"stellarid/internal/model"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// Normalizer rewrites and signs transaction envelopes for one network.
type Normalizer struct {
	Passphrase string
}

var (
	placeholderOnce sync.Once
	placeholderAddr string
)

// PlaceholderSource returns the public key derived from the all-zero seed,
// the sentinel that marks a template source account.
func PlaceholderSource() string {
	placeholderOnce.Do(func() {
		kp, err := keypair.FromRawSeed([32]byte{})
		if err != nil {
			panic(fmt.Sprintf("failed to derive placeholder keypair: %v", err))
		}
		placeholderAddr = kp.Address()
	})
	return placeholderAddr
}

// NormalizeMemoType maps a free-form memo type ("MEMO_TEXT", "id", ...) to
// one of text/id/hash/return. Anything unrecognized or absent becomes text.
func NormalizeMemoType(memoType string) string {
	if memoType == "" {
		return "text"
	}
	parts := strings.Split(memoType, "_")
	typ := strings.ToLower(parts[len(parts)-1])
	switch typ {
	case "text", "id", "hash", "return":
		return typ
	}
	return "text"
}

// BuildMemo constructs a txnbuild memo from a normalized type and raw value.
// Hash and return memos expect a hex-encoded 32-byte digest.
func BuildMemo(memoType, value string) (txnbuild.Memo, error) {
	switch NormalizeMemoType(memoType) {
	case "id":
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, model.Validationf("Invalid id memo %q.", value)
		}
		return txnbuild.MemoID(id), nil
	case "hash", "return":
		raw, err := hex.DecodeString(value)
		if err != nil || len(raw) != 32 {
			return nil, model.Validationf("Invalid hash memo %q.", value)
		}
		var digest [32]byte
		copy(digest[:], raw)
		if NormalizeMemoType(memoType) == "return" {
			return txnbuild.MemoReturn(digest), nil
		}
		return txnbuild.MemoHash(digest), nil
	default:
		return txnbuild.MemoText(value), nil
	}
}

// PaymentOp builds a payment operation; the native asset is implied when no
// issuer is given.
func PaymentOp(destination, amount, assetCode, assetIssuer string) txnbuild.Operation {
	var asset txnbuild.Asset = txnbuild.NativeAsset{}
	if assetIssuer != "" {
		asset = txnbuild.CreditAsset{Code: assetCode, Issuer: assetIssuer}
	}
	return &txnbuild.Payment{
		Destination: destination,
		Amount:      amount,
		Asset:       asset,
	}
}

// TrustOp builds a change-trust operation. An empty limit means the maximum
// representable trustline limit.
func TrustOp(assetCode, assetIssuer, limit string) txnbuild.Operation {
	if limit == "" {
		limit = txnbuild.MaxTrustlineLimit
	}
	return &txnbuild.ChangeTrust{
		Line:  txnbuild.ChangeTrustAssetWrapper{Asset: txnbuild.CreditAsset{Code: assetCode, Issuer: assetIssuer}},
		Limit: limit,
	}
}

// InflationVoteOp builds a set-options operation pointing the inflation
// destination at the given address.
func InflationVoteOp(destination string) txnbuild.Operation {
	return &txnbuild.SetOptions{InflationDestination: &destination}
}

// Build constructs an unsigned envelope for the signer's account: fetches the
// current sequence number, appends the operations in order and attaches the
// normalized memo. Returns the base64 envelope XDR.
func (n *Normalizer) Build(ctx context.Context, ledger client.Ledger, sourceAddress string,
	ops []txnbuild.Operation, memo, memoType string) (string, error) {

	sequence, err := ledger.SequenceForAccount(ctx, sourceAddress)
	if err != nil {
		return "", err
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: sourceAddress, Sequence: sequence},
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	}
	if memo != "" {
		m, err := BuildMemo(memoType, memo)
		if err != nil {
			return "", err
		}
		params.Memo = m
	}

	built, err := txnbuild.NewTransaction(params)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}
	return built.Base64()
}

// NormalizeIncoming applies the two independent placeholder substitutions to
// a caller-supplied envelope. Envelopes whose source and sequence are already
// concrete pass through unchanged.
func (n *Normalizer) NormalizeIncoming(ctx context.Context, ledger client.Ledger,
	envelopeXDR, signerAddress string) (string, error) {

	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envelopeXDR, &env); err != nil {
		return "", model.Validationf("Invalid transaction XDR.")
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx && env.Type != xdr.EnvelopeTypeEnvelopeTypeTxV0 {
		return "", model.Validationf("Unsupported transaction envelope type.")
	}

	source := env.SourceAccount().ToAccountId().Address()
	replaceSource := source == PlaceholderSource()
	replaceSequence := env.SeqNum() == 0
	if !replaceSource && !replaceSequence {
		return envelopeXDR, nil
	}

	resolved := source
	if replaceSource {
		resolved = signerAddress
	}

	var sequence int64
	if replaceSequence {
		current, err := ledger.SequenceForAccount(ctx, resolved)
		if err != nil {
			return "", err
		}
		sequence = current + 1
	}

	switch env.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx:
		if replaceSource {
			env.V1.Tx.SourceAccount = xdr.MustMuxedAddress(resolved)
		}
		if replaceSequence {
			env.V1.Tx.SeqNum = xdr.SequenceNumber(sequence)
		}
	case xdr.EnvelopeTypeEnvelopeTypeTxV0:
		if replaceSource {
			raw, err := strkey.Decode(strkey.VersionByteAccountID, resolved)
			if err != nil {
				return "", fmt.Errorf("failed to decode source account: %w", err)
			}
			copy(env.V0.Tx.SourceAccountEd25519[:], raw)
		}
		if replaceSequence {
			env.V0.Tx.SeqNum = xdr.SequenceNumber(sequence)
		}
	}

	return xdr.MarshalBase64(env)
}

// Finalized is the outcome of signing (and optionally submitting) an envelope.
type Finalized struct {
	SignedEnvelopeXDR string
	// TxSignature is the hex detached signature over the transaction hash,
	// set only in prepare mode.
	TxSignature string
	// TxHash is the network confirmation hash, set only after submission.
	TxHash    string
	Submitted bool
	Horizon   string
}

// Finalize signs the envelope hash with the keypair. When submit is set the
// signed envelope is posted to the ledger; otherwise the signed envelope and
// a standalone hash signature are returned for the caller to relay.
func (n *Normalizer) Finalize(ctx context.Context, ledger client.Ledger,
	envelopeXDR string, kp *keypair.Full, submit bool) (*Finalized, error) {

	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envelopeXDR, &env); err != nil {
		return nil, model.Validationf("Invalid transaction XDR.")
	}

	hash, err := network.HashTransactionInEnvelope(env, n.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}
	decorated, err := kp.SignDecorated(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	switch env.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx:
		env.V1.Signatures = append(env.V1.Signatures, decorated)
	case xdr.EnvelopeTypeEnvelopeTypeTxV0:
		env.V0.Signatures = append(env.V0.Signatures, decorated)
	default:
		return nil, model.Validationf("Unsupported transaction envelope type.")
	}

	signedXDR, err := xdr.MarshalBase64(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	res := &Finalized{SignedEnvelopeXDR: signedXDR, Horizon: ledger.URL()}
	if submit {
		txHash, err := ledger.SubmitTransactionXDR(ctx, signedXDR)
		if err != nil {
			return nil, err
		}
		res.TxHash = txHash
		res.Submitted = true
		return res, nil
	}

	signature, err := kp.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction hash: %w", err)
	}
	res.TxSignature = hex.EncodeToString(signature)
	return res, nil
}

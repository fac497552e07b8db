package tx

import (
	"context"
	"testing"

	"stellarid/internal/model"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger serves canned sequence numbers and records submissions.
type fakeLedger struct {
	sequences map[string]int64
	submitted []string
	hash      string
	err       error
}

func (f *fakeLedger) SequenceForAccount(_ context.Context, accountID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	seq, ok := f.sequences[accountID]
	if !ok {
		return 0, model.Networkf("Account does not exist on the network.")
	}
	return seq, nil
}

func (f *fakeLedger) SubmitTransactionXDR(_ context.Context, envelopeXDR string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, envelopeXDR)
	return f.hash, nil
}

func (f *fakeLedger) URL() string { return "https://horizon.example.org" }

func testKeypair(t *testing.T) *keypair.Full {
	t.Helper()
	kp, err := keypair.FromRawSeed([32]byte{1, 2, 3, 4})
	require.NoError(t, err)
	return kp
}

// makeEnvelope builds a minimal v1 envelope directly at the XDR level so
// tests can use template values txnbuild would refuse to produce.
func makeEnvelope(t *testing.T, source string, sequence int64) string {
	t.Helper()
	env := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MustMuxedAddress(source),
				Fee:           100,
				SeqNum:        xdr.SequenceNumber(sequence),
				Memo:          xdr.Memo{Type: xdr.MemoTypeMemoNone},
			},
		},
	}
	encoded, err := xdr.MarshalBase64(env)
	require.NoError(t, err)
	return encoded
}

func parseEnvelope(t *testing.T, envelopeXDR string) xdr.TransactionEnvelope {
	t.Helper()
	var env xdr.TransactionEnvelope
	require.NoError(t, xdr.SafeUnmarshalBase64(envelopeXDR, &env))
	return env
}

func TestNormalizeMemoType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "text"},
		{"MEMO_TEXT", "text"},
		{"MEMO_ID", "id"},
		{"id", "id"},
		{"hash", "hash"},
		{"MEMO_RETURN", "return"},
		{"bogus", "text"},
		{"MEMO_BOGUS", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMemoType(tt.in), "memo type %q", tt.in)
	}
}

func TestNormalizeIncomingSubstitutions(t *testing.T) {
	n := &Normalizer{Passphrase: network.TestNetworkPassphrase}
	signer := testKeypair(t)
	concrete := keypair.MustRandom().Address()

	t.Run("both placeholders", func(t *testing.T) {
		ledger := &fakeLedger{sequences: map[string]int64{signer.Address(): 41}}
		out, err := n.NormalizeIncoming(context.Background(), ledger,
			makeEnvelope(t, PlaceholderSource(), 0), signer.Address())
		require.NoError(t, err)
		env := parseEnvelope(t, out)
		assert.Equal(t, signer.Address(), env.SourceAccount().ToAccountId().Address())
		assert.EqualValues(t, 42, env.SeqNum())
	})

	t.Run("source only", func(t *testing.T) {
		// sequence already concrete, so no ledger round-trip happens
		ledger := &fakeLedger{sequences: map[string]int64{}}
		out, err := n.NormalizeIncoming(context.Background(), ledger,
			makeEnvelope(t, PlaceholderSource(), 7), signer.Address())
		require.NoError(t, err)
		env := parseEnvelope(t, out)
		assert.Equal(t, signer.Address(), env.SourceAccount().ToAccountId().Address())
		assert.EqualValues(t, 7, env.SeqNum())
	})

	t.Run("sequence only keeps foreign source", func(t *testing.T) {
		ledger := &fakeLedger{sequences: map[string]int64{concrete: 99}}
		out, err := n.NormalizeIncoming(context.Background(), ledger,
			makeEnvelope(t, concrete, 0), signer.Address())
		require.NoError(t, err)
		env := parseEnvelope(t, out)
		assert.Equal(t, concrete, env.SourceAccount().ToAccountId().Address())
		assert.EqualValues(t, 100, env.SeqNum())
	})

	t.Run("concrete envelope is untouched", func(t *testing.T) {
		in := makeEnvelope(t, concrete, 12345)
		out, err := n.NormalizeIncoming(context.Background(), &fakeLedger{}, in, signer.Address())
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("malformed xdr", func(t *testing.T) {
		_, err := n.NormalizeIncoming(context.Background(), &fakeLedger{}, "not-xdr", signer.Address())
		require.Error(t, err)
		assert.True(t, model.IsKind(err, model.KindValidation))
	})
}

func TestFinalizePrepare(t *testing.T) {
	n := &Normalizer{Passphrase: network.TestNetworkPassphrase}
	signer := testKeypair(t)
	ledger := &fakeLedger{}

	res, err := n.Finalize(context.Background(), ledger,
		makeEnvelope(t, signer.Address(), 42), signer, false)
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.Len(t, res.TxSignature, 128)
	assert.Empty(t, res.TxHash)
	assert.Empty(t, ledger.submitted)

	env := parseEnvelope(t, res.SignedEnvelopeXDR)
	require.Len(t, env.Signatures(), 1)

	// the envelope signature must verify against the transaction hash
	hash, err := network.HashTransactionInEnvelope(env, network.TestNetworkPassphrase)
	require.NoError(t, err)
	require.NoError(t, signer.Verify(hash[:], env.Signatures()[0].Signature))
}

func TestFinalizeSubmit(t *testing.T) {
	n := &Normalizer{Passphrase: network.TestNetworkPassphrase}
	signer := testKeypair(t)
	ledger := &fakeLedger{hash: "abcdef"}

	res, err := n.Finalize(context.Background(), ledger,
		makeEnvelope(t, signer.Address(), 42), signer, true)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.Equal(t, "abcdef", res.TxHash)
	assert.Empty(t, res.TxSignature)
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, res.SignedEnvelopeXDR, ledger.submitted[0])
}

func TestBuild(t *testing.T) {
	n := &Normalizer{Passphrase: network.TestNetworkPassphrase}
	signer := testKeypair(t)
	destination := keypair.MustRandom().Address()
	ledger := &fakeLedger{sequences: map[string]int64{signer.Address(): 41}}

	out, err := n.Build(context.Background(), ledger, signer.Address(),
		[]txnbuild.Operation{PaymentOp(destination, "10.5", "", "")}, "thanks", "MEMO_TEXT")
	require.NoError(t, err)

	env := parseEnvelope(t, out)
	assert.Equal(t, signer.Address(), env.SourceAccount().ToAccountId().Address())
	assert.EqualValues(t, 42, env.SeqNum())
	require.Len(t, env.Operations(), 1)
	assert.Equal(t, xdr.MemoTypeMemoText, env.Memo().Type)
}

func TestBuildMemoValidation(t *testing.T) {
	_, err := BuildMemo("id", "not-a-number")
	require.Error(t, err)

	_, err = BuildMemo("hash", "zz")
	require.Error(t, err)

	m, err := BuildMemo("id", "42")
	require.NoError(t, err)
	assert.Equal(t, txnbuild.MemoID(42), m)
}

func TestResolveNetwork(t *testing.T) {
	n, err := ResolveNetwork("", "")
	require.NoError(t, err)
	assert.Equal(t, network.PublicNetworkPassphrase, n.Passphrase)
	assert.Equal(t, "https://horizon.stellar.org", n.Horizon)

	n, err = ResolveNetwork("TESTNET", "")
	require.NoError(t, err)
	assert.Equal(t, network.TestNetworkPassphrase, n.Passphrase)

	n, err = ResolveNetwork("public", "https://horizon.mirror.example")
	require.NoError(t, err)
	assert.Equal(t, "https://horizon.mirror.example", n.Horizon)

	_, err = ResolveNetwork("Private Net 2024", "")
	require.Error(t, err)

	n, err = ResolveNetwork("Private Net 2024", "https://horizon.private.example")
	require.NoError(t, err)
	assert.Equal(t, "Private Net 2024", n.Passphrase)
}

// Package client wraps the Stellar Horizon RPC service. The rest of the
// system talks to the Ledger interface so tests can substitute a fake.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stellarid/internal/model"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
)

// Ledger is the black-box RPC service used to read account sequence numbers
// and submit signed envelopes.
type Ledger interface {
	// SequenceForAccount returns the current on-ledger sequence number.
	SequenceForAccount(ctx context.Context, accountID string) (int64, error)
	// SubmitTransactionXDR submits a signed base64 envelope and returns the
	// resulting transaction hash.
	SubmitTransactionXDR(ctx context.Context, envelopeXDR string) (string, error)
	// URL returns the Horizon server URL this client talks to.
	URL() string
}

// HorizonClient is the production Ledger implementation.
type HorizonClient struct {
	client  *horizonclient.Client
	network string
	url     string
}

// NewHorizonClient creates a Ledger for the named network backed by the given
// Horizon server.
func NewHorizonClient(network, horizonURL string) *HorizonClient {
	return &HorizonClient{
		client: &horizonclient.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: 15 * time.Second},
		},
		network: network,
		url:     horizonURL,
	}
}

// URL returns the Horizon server URL.
func (c *HorizonClient) URL() string {
	return c.url
}

// SequenceForAccount loads the account record and extracts its sequence number.
func (c *HorizonClient) SequenceForAccount(ctx context.Context, accountID string) (int64, error) {
	account, err := await(ctx, func() (hProtocol.Account, error) {
		return c.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	})
	if err != nil {
		return 0, c.mapHorizonError(err)
	}
	sequence, err := account.GetSequenceNumber()
	if err != nil {
		return 0, fmt.Errorf("failed to parse account sequence: %w", err)
	}
	return sequence, nil
}

// SubmitTransactionXDR posts the signed envelope to Horizon.
func (c *HorizonClient) SubmitTransactionXDR(ctx context.Context, envelopeXDR string) (string, error) {
	resp, err := await(ctx, func() (hProtocol.Transaction, error) {
		return c.client.SubmitTransactionXDR(envelopeXDR)
	})
	if err != nil {
		return "", c.mapHorizonError(err)
	}
	return resp.Hash, nil
}

// await runs a blocking Horizon call with context cancellation. The
// horizonclient API offers no per-request context, so an abandoned call is
// left to finish against the underlying HTTP client timeout.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := call()
		done <- outcome{value: value, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case out := <-done:
		return out.value, out.err
	}
}

// mapHorizonError converts Horizon/transport errors into the tagged error
// taxonomy. RPC error bodies are forwarded for caller-side diagnostics.
func (c *HorizonClient) mapHorizonError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.Networkf("Horizon request aborted: %v.", err)
	}
	if herr, ok := err.(*horizonclient.Error); ok {
		if herr.Problem.Status == http.StatusNotFound {
			return model.Networkf("Account does not exist on the network %s.", c.network)
		}
		e := model.Networkf("Transaction failed.")
		e.Details = herr.Problem
		return e
	}
	return model.Networkf("Network error.")
}

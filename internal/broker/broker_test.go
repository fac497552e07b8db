package broker

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellarid/internal/model"
)

type fakeWindow struct {
	closed atomic.Bool
}

func (w *fakeWindow) Close() error {
	w.closed.Store(true)
	return nil
}

func newTestBroker(opts ...Option) (*Broker, *fakeWindow, *string) {
	window := &fakeWindow{}
	var openedURL string
	opener := func(u string, width, height int) (Window, error) {
		openedURL = u
		return window, nil
	}
	return New("https://id.example.com", opener, opts...), window, &openedURL
}

func TestSerializeRequest(t *testing.T) {
	req := model.IntentRequest{
		Intent:         "sign_message",
		Params:         map[string]string{"message": "hello world", "pubkey": "GABC"},
		AppName:        "Demo App",
		AppDescription: "A demo",
	}
	serialized := SerializeRequest(req)
	values, err := url.ParseQuery(serialized)
	require.NoError(t, err)
	assert.Equal(t, "sign_message", values.Get("intent"))
	assert.Equal(t, "hello world", values.Get("message"))
	assert.Equal(t, "GABC", values.Get("pubkey"))
	assert.Equal(t, "Demo App", values.Get("app_name"))
	assert.False(t, values.Has("callback"))
}

func TestEncodeLink(t *testing.T) {
	req := model.IntentRequest{Intent: "public_key", AppName: "x", AppDescription: "y"}
	link := EncodeLink("https://id.example.com", req)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/confirm", parsed.Path)
	inner, err := url.ParseQuery(parsed.Query().Get("encoded"))
	require.NoError(t, err)
	assert.Equal(t, "public_key", inner.Get("intent"))
}

func TestOpenResolvesOnMessage(t *testing.T) {
	b, window, openedURL := newTestBroker()
	req := model.IntentRequest{Intent: "public_key", AppName: "a", AppDescription: "b"}

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		b.HandleMessage("https://id.example.com", model.Result{"pubkey": "GABC"})
	}()

	result, err := b.Open(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "GABC", result["pubkey"])
	assert.True(t, window.closed.Load())
	assert.True(t, strings.HasPrefix(*openedURL, "https://id.example.com/confirm?"))
}

func TestOpenRejectsSecondRequest(t *testing.T) {
	b, _, _ := newTestBroker()
	req := model.IntentRequest{Intent: "public_key"}

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		_, err := b.Open(context.Background(), req)
		assert.ErrorIs(t, err, ErrRequestPending)
		b.WindowClosed()
	}()

	_, err := b.Open(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, model.ErrRejectedByUser.Message, err.Error())
}

func TestCallbackModeResolvesOnWindowClose(t *testing.T) {
	b, _, _ := newTestBroker()
	req := model.IntentRequest{
		Intent:   "pay",
		Callback: "url:https://app.example.com/cb",
	}

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		b.WindowClosed()
	}()

	result, err := b.Open(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, true, result["delivered_via_callback"])
}

func TestOpenTimesOut(t *testing.T) {
	b, window, _ := newTestBroker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Open(ctx, model.IntentRequest{Intent: "public_key"})
	require.EqualError(t, err, "Intent confirmation timed out.")
	assert.True(t, model.IsKind(err, model.KindProtocol))
	assert.True(t, window.closed.Load())
}

func TestOpenReportsExplicitCancellation(t *testing.T) {
	b, window, _ := newTestBroker()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := b.Open(ctx, model.IntentRequest{Intent: "public_key"})
	require.EqualError(t, err, "Intent confirmation was canceled.")
	assert.True(t, model.IsKind(err, model.KindProtocol))
	assert.True(t, window.closed.Load())
}

func TestHandleMessageIgnoresForeignOrigin(t *testing.T) {
	b, _, _ := newTestBroker()

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		b.HandleMessage("https://evil.example.com", model.Result{"pubkey": "GEVIL"})
		b.HandleMessage("https://id.example.com", model.Result{"pubkey": "GOK"})
	}()

	result, err := b.Open(context.Background(), model.IntentRequest{Intent: "public_key"})
	require.NoError(t, err)
	assert.Equal(t, "GOK", result["pubkey"])
}

func TestHandleMessageAnyOrigin(t *testing.T) {
	b, _, _ := newTestBroker(AllowAnyOrigin())

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		b.HandleMessage("https://proxy.example.com", model.Result{"pubkey": "GOK"})
	}()

	result, err := b.Open(context.Background(), model.IntentRequest{Intent: "public_key"})
	require.NoError(t, err)
	assert.Equal(t, "GOK", result["pubkey"])
}

func TestErrorPayloadResolution(t *testing.T) {
	b, _, _ := newTestBroker()

	go func() {
		for b.pendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		b.HandleMessage("https://id.example.com", model.Result{
			"error": map[string]any{"message": "Action was rejected by user", "code": float64(1)},
		})
	}()

	_, err := b.Open(context.Background(), model.IntentRequest{Intent: "public_key"})
	require.Error(t, err)
	tagged, ok := model.As(err)
	require.True(t, ok)
	assert.Equal(t, 1, tagged.Code)
	assert.Equal(t, "Action was rejected by user", tagged.Message)
}

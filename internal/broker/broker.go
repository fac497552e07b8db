// Package broker implements the caller side of the cross-window intent
// protocol: it opens the confirmation surface on the trusted origin,
// correlates exactly one pending request to its asynchronous response and
// delivers the result back to the caller.
package broker

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"stellarid/internal/model"
)

const (
	confirmPath  = "/confirm"
	windowWidth  = 440
	windowHeight = 600
)

// ErrRequestPending is returned when a second request is opened while one is
// already in flight. At most one request may be pending per broker.
var ErrRequestPending = model.Protocolf("Another intent request is already in progress.")

// Window is an opened confirmation surface.
type Window interface {
	Close() error
}

// Opener opens the confirmation surface at the given URL. The window is a
// fixed-size centered popup in browser embeddings; other embeddings may
// launch whatever surface fits.
type Opener func(url string, width, height int) (Window, error)

// Broker correlates intent requests with their responses.
type Broker struct {
	origin string
	opener Opener
	// allowAnyOrigin disables response-origin checking, reproducing the
	// permissive legacy behavior for embedders that proxy messages.
	allowAnyOrigin bool

	mu      sync.Mutex
	pending *pendingRequest
}

type outcome struct {
	result model.Result
	err    error
}

type pendingRequest struct {
	done   chan outcome
	window Window
	// callback requests resolve on window close: the response already went
	// to the caller's server endpoint.
	callback bool
}

// Option configures a Broker.
type Option func(*Broker)

// AllowAnyOrigin accepts response messages from any origin.
func AllowAnyOrigin() Option {
	return func(b *Broker) { b.allowAnyOrigin = true }
}

// New creates a Broker for the trusted confirmation origin.
func New(origin string, opener Opener, opts ...Option) *Broker {
	b := &Broker{origin: origin, opener: opener}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SerializeRequest percent-encodes the request as key=value pairs joined
// by "&".
func SerializeRequest(req model.IntentRequest) string {
	values := url.Values{}
	values.Set("intent", req.Intent)
	for key, value := range req.Params {
		values.Set(key, value)
	}
	values.Set("app_name", req.AppName)
	values.Set("app_description", req.AppDescription)
	if req.Callback != "" {
		values.Set("callback", req.Callback)
	}
	return values.Encode()
}

// ConfirmURL is the confirmation surface URL for the request.
func (b *Broker) ConfirmURL(req model.IntentRequest) string {
	return b.origin + confirmPath + "?" + SerializeRequest(req)
}

// EncodeLink wraps the serialized request again as a single opaque encoded=
// parameter, for clients that prefer one link-safe value.
func EncodeLink(origin string, req model.IntentRequest) string {
	values := url.Values{}
	values.Set("encoded", SerializeRequest(req))
	return origin + confirmPath + "?" + values.Encode()
}

// Open dispatches the request and blocks until the confirmation surface
// responds, the window is closed, or ctx is done. ctx is the only timeout
// mechanism; context.Background() waits indefinitely.
//
// In callback mode (req.Callback set) the response goes to the caller's
// server endpoint via form POST and this call resolves only when the window
// closes.
func (b *Broker) Open(ctx context.Context, req model.IntentRequest) (model.Result, error) {
	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return nil, ErrRequestPending
	}
	window, err := b.opener(b.ConfirmURL(req), windowWidth, windowHeight)
	if err != nil {
		b.mu.Unlock()
		return nil, model.Protocolf("Failed to open the confirmation window.")
	}
	pending := &pendingRequest{
		done:     make(chan outcome, 1),
		window:   window,
		callback: req.Callback != "",
	}
	b.pending = pending
	b.mu.Unlock()

	select {
	case out := <-pending.done:
		b.clear(pending)
		return out.result, out.err
	case <-ctx.Done():
		b.clear(pending)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, model.Protocolf("Intent confirmation was canceled.")
		}
		return nil, model.Protocolf("Intent confirmation timed out.")
	}
}

func (b *Broker) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return 0
	}
	return 1
}

func (b *Broker) clear(pending *pendingRequest) {
	b.mu.Lock()
	if b.pending == pending {
		b.pending = nil
	}
	b.mu.Unlock()
	_ = pending.window.Close()
}

// HandleMessage delivers a cross-window message to the pending request.
// Messages arriving while nothing is pending, or from an unexpected origin,
// are ignored.
func (b *Broker) HandleMessage(origin string, payload model.Result) {
	if !b.allowAnyOrigin && origin != b.origin {
		return
	}
	if errPayload, ok := payload["error"]; ok {
		b.resolve(outcome{err: errorFromPayload(errPayload)})
		return
	}
	b.resolve(outcome{result: payload})
}

// WindowClosed reports that the confirmation window was closed. Without a
// callback the pending request is rejected as a user rejection; in callback
// mode the close is the terminal success signal, since the response was
// already delivered to the caller's endpoint.
func (b *Broker) WindowClosed() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	if pending == nil {
		return
	}
	if pending.callback {
		pending.done <- outcome{result: model.Result{"delivered_via_callback": true}}
		return
	}
	pending.done <- outcome{err: model.ErrRejectedByUser}
}

func (b *Broker) resolve(out outcome) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	if pending == nil {
		return
	}
	pending.done <- out
}

func errorFromPayload(payload any) error {
	switch v := payload.(type) {
	case model.ErrorPayload:
		return &model.Error{Kind: model.KindProtocol, Code: v.Code, Message: v.Message}
	case map[string]any:
		message, _ := v["message"].(string)
		if message == "" {
			return model.ErrGeneric
		}
		code := 0
		switch c := v["code"].(type) {
		case int:
			code = c
		case float64:
			// JSON numbers decode as float64.
			code = int(c)
		}
		return &model.Error{Kind: model.KindProtocol, Code: code, Message: message}
	case string:
		return model.Protocolf("%s", v)
	default:
		return model.ErrGeneric
	}
}

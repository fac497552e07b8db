package confirm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stellarid/internal/model"
)

const callbackScheme = "url:"

// MessageSink delivers a payload to the opener browsing context. A nil sink
// means the opener window has been closed.
type MessageSink interface {
	PostMessage(payload model.Result) error
}

// Alerter shows a terminal user-facing message when no delivery channel is
// left.
type Alerter interface {
	Alert(message string)
}

// Dispatcher delivers intent results and errors back to the caller, either
// through the cross-window channel or a callback endpoint.
type Dispatcher struct {
	sink    MessageSink
	alerter Alerter
	client  *http.Client
}

// NewDispatcher creates a Dispatcher. sink may be nil when the opener window
// is already gone.
func NewDispatcher(sink MessageSink, alerter Alerter) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		alerter: alerter,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// DispatchResponse delivers a successful result. Callback mode posts the
// fields as an HTTP form; otherwise the result goes to the opener window.
func (d *Dispatcher) DispatchResponse(ctx context.Context, a *ActionContext, res model.Result) error {
	if a.Callback != "" {
		return d.execCallback(ctx, a.Callback, res)
	}
	if d.sink == nil {
		return model.Protocolf("Parent browser window was closed.")
	}
	return d.sink.PostMessage(res)
}

// DispatchError delivers a rejection. Delivery degrades: callback mode and a
// closed opener window both fall back to a direct alert, which is terminal
// and never retried.
func (d *Dispatcher) DispatchError(a *ActionContext, err error) {
	if err == nil {
		err = model.ErrRejectedByUser
	}
	if a.Callback != "" {
		d.alerter.Alert(err.Error())
		return
	}
	if d.sink == nil {
		d.alerter.Alert("Unable to process. Parent browser window was closed. " + err.Error())
		return
	}
	if postErr := d.sink.PostMessage(model.PayloadFor(err)); postErr != nil {
		d.alerter.Alert("Unable to process. Parent browser window was closed. " + err.Error())
	}
}

// execCallback POSTs the result fields to the callback endpoint as an HTML
// form would, per the url:<endpoint> callback contract.
func (d *Dispatcher) execCallback(ctx context.Context, callback string, res model.Result) error {
	if !strings.HasPrefix(callback, callbackScheme) {
		return model.Validationf("Unsupported callback schema: %s", callback)
	}
	endpoint := callback[len(callbackScheme):]

	form := url.Values{}
	for name, value := range res {
		form.Set(name, stringifyField(value))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return model.Networkf("Invalid callback endpoint %q.", endpoint)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return model.Networkf("Failed to deliver the intent response.")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return model.Networkf("Callback endpoint responded with status %d.", resp.StatusCode)
	}
	return nil
}

func stringifyField(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

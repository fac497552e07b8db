package model

// IntentRequest is an intent invocation assembled by the caller SDK.
// Immutable once dispatched.
type IntentRequest struct {
	// Intent is the registered intent name, e.g. "sign_msg".
	Intent string
	// Params holds intent-specific parameters (message, xdr, amount etc).
	Params map[string]string
	// AppName is a friendly application name shown to the user.
	AppName string
	// AppDescription is a short application description.
	AppDescription string
	// Callback, when set, switches response delivery to an HTTP form POST
	// ("url:<endpoint>" scheme). The opener window is not notified in this mode.
	Callback string
}

// Result is a generic intent result before or after return-field filtering.
// Values are strings except for nested info objects (basic_info).
type Result = map[string]any

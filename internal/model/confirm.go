package model

// ConfirmRequest is the body of POST /confirm, the programmatic equivalent
// of the confirmation surface.
type ConfirmRequest struct {
	// Query is the raw intent request query string, exactly as produced by
	// the caller SDK.
	Query string `json:"query"`
	Email string `json:"email"`
	// Password may be empty when the account is already unlocked or a valid
	// session exists.
	Password string `json:"password,omitempty"`
	// Pubkey selects a specific keypair; defaults to the requested one or the
	// first available.
	Pubkey string `json:"pubkey,omitempty"`
	// SessionDurationSeconds > 0 persists a session on unlock.
	SessionDurationSeconds int64 `json:"session_duration,omitempty"`
	// Confirm false rejects the request on the user's behalf.
	Confirm bool `json:"confirm"`
}

// ConfirmDescription is the response of GET /confirm: what the caller asked
// for, before the user decides.
type ConfirmDescription struct {
	Intent          string   `json:"intent"`
	AppName         string   `json:"app_name"`
	AppOrigin       string   `json:"app_origin"`
	RequestedPubkey string   `json:"requested_pubkey,omitempty"`
	Risk            string   `json:"risk,omitempty"`
	PersonalData    bool     `json:"personal_data"`
	Unsafe          bool     `json:"unsafe"`
	Returns         []string `json:"returns,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// CreateAccountRequest is the body of POST /accounts.
type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// KeypairRequest is the body of POST and DELETE /accounts/keypairs.
type KeypairRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	// Secret is required when adding a keypair.
	Secret       string `json:"secret,omitempty"`
	FriendlyName string `json:"friendlyName,omitempty"`
	// Address is required when removing a keypair.
	Address string `json:"address,omitempty"`
}

// SignOutRequest is the body of POST /accounts/signout.
type SignOutRequest struct {
	Email string `json:"email"`
}

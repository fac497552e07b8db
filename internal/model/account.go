package model

// AccountInfo is the public view of a stored account. Never carries key
// material or encryption keys.
type AccountInfo struct {
	Email         string `json:"email"`
	Avatar        string `json:"avatar,omitempty"`
	UseMultiLogin bool   `json:"useMultiLogin"`
	Unlocked      bool   `json:"unlocked"`
}

// KeypairInfo is the public view of a single account keypair.
type KeypairInfo struct {
	Address      string `json:"address"`
	FriendlyName string `json:"friendlyName,omitempty"`
	DisplayName  string `json:"displayName"`
}

// BasicInfo is returned by the basic_info intent.
type BasicInfo struct {
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

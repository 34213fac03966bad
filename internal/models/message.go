package models

// Message is a single entry in a room's message log. ID and Timestamp are
// assigned by the store on append and never change afterwards; Read is the
// only mutable field.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	AvatarRef  string `json:"avatarRef,omitempty"`
	Body       string `json:"body"`
	// Timestamp is the server-assigned send time in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
	Read      bool  `json:"read"`
}

// PresenceStatus is a user's live online/offline state, independent of any room.
type PresenceStatus struct {
	Online bool `json:"online"`
	// LastSeen is in milliseconds since the epoch; zero when the user has
	// never been seen.
	LastSeen int64 `json:"lastSeen"`
}

// Identity is the authenticated "current user" supplied by the auth layer.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	PhotoRef    string `json:"photoRef,omitempty"`
}

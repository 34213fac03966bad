package models

// Participant is one side of a two-party conversation, embedded in ChatRoom.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// ChatRoom represents a direct conversation between exactly two marketplace
// users. The slots are ordered the same way as the room key (participant with
// the lexicographically smaller id first), so the record is identical no
// matter which side created it.
type ChatRoom struct {
	// Key is the deterministic room identifier derived from both participant ids.
	Key string `json:"key"`
	// ParticipantA is the participant whose id sorts first.
	ParticipantA Participant `json:"participantA"`
	// ParticipantB is the participant whose id sorts second.
	ParticipantB Participant `json:"participantB"`
	// LastMessageText is a truncated preview of the most recent message.
	LastMessageText string `json:"lastMessageText"`
	// LastMessageSenderID identifies who sent the most recent message.
	LastMessageSenderID string `json:"lastMessageSenderId"`
	// LastMessageAt is the server timestamp of the most recent message, in
	// milliseconds since the epoch. Zero until the first message is sent.
	LastMessageAt int64 `json:"lastMessageAt"`
	CreatedAt     int64 `json:"createdAt"`
	UpdatedAt     int64 `json:"updatedAt"`
}

// Other returns the participant that is not userID. If userID is in neither
// slot the zero Participant is returned.
func (r ChatRoom) Other(userID string) Participant {
	switch userID {
	case r.ParticipantA.ID:
		return r.ParticipantB
	case r.ParticipantB.ID:
		return r.ParticipantA
	}
	return Participant{}
}

package events

import "encoding/json"

// routingFields are the payload fields common to every event body that the
// resolver cares about. Payloads are decoded loosely so the resolver does not
// depend on the concrete payload structs.
type routingFields struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	RecipientIDs   []string `json:"recipient_ids"`
	ParticipantIDs []string `json:"participant_ids"`
}

// ResolveChannels maps an envelope to the pub/sub channels it should be
// delivered on: the conversation channel for anyone attached to the thread,
// plus per-user channels so recipients get it even without the thread open.
func ResolveChannels(env Envelope) []string {
	var fields routingFields
	if err := json.Unmarshal(env.Payload, &fields); err != nil {
		return nil
	}

	var channels []string
	seen := make(map[string]bool)
	add := func(ch string) {
		if ch != "" && !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}

	if fields.ConversationID != "" {
		add(ChannelPrefixConversation + fields.ConversationID)
	} else if env.AggregateType == AggregateTypeConversation {
		add(ChannelPrefixConversation + env.AggregateID)
	}

	for _, id := range fields.RecipientIDs {
		add(ChannelPrefixUser + id)
	}
	for _, id := range fields.ParticipantIDs {
		add(ChannelPrefixUser + id)
	}

	// Typing stays on the conversation channel only, no user fanout.
	switch env.EventType {
	case EventTypeConversationRead:
		add(ChannelPrefixUser + fields.UserID)
	}

	return channels
}

package events

// Event type constants, format: domain.action

// Message events
const (
	EventTypeMessageCreated = "message.created"
)

// Conversation events
const (
	EventTypeConversationCreated = "conversation.created"
	EventTypeConversationRead    = "conversation.read"
)

// Offer lifecycle events. offer.accepted is the trigger point for the
// downstream order/checkout collaborator.
const (
	EventTypeOfferCreated   = "offer.created"
	EventTypeOfferAccepted  = "offer.accepted"
	EventTypeOfferRejected  = "offer.rejected"
	EventTypeOfferCountered = "offer.countered"
	EventTypeOfferExpired   = "offer.expired"
	EventTypeOfferWithdrawn = "offer.withdrawn"
)

// Typing and presence events (real-time only, never persisted)
const (
	EventTypeTypingStarted = "typing.started"
	EventTypeTypingStopped = "typing.stopped"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeConversation = "conversation"
	AggregateTypeOffer        = "offer"
	AggregateTypeTyping       = "typing"
)

// Redis channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixUser         = "channel:user:"
	ChannelSystemOutbox       = "channel:system:outbox"
)

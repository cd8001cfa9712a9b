package httpdto

import (
	"time"

	"bazaar-chat/internal/domain/message"
)

type SendMessageRequest struct {
	Content         string `json:"content"`
	Type            string `json:"type"`
	ClientMessageID string `json:"client_message_id"`
}

type MessageView struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SenderID        string    `json:"sender_id"`
	SeqID           int64     `json:"seq_id"`
	Type            string    `json:"type"`
	Content         string    `json:"content,omitempty"`
	OfferID         string    `json:"offer_id,omitempty"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ListMessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

func FromMessage(m message.Message) MessageView {
	view := MessageView{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		SeqID:          m.SeqID,
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
	}
	if m.Content.Valid {
		view.Content = m.Content.String
	}
	if m.OfferID.Valid {
		view.OfferID = m.OfferID.UUID.String()
	}
	if m.ClientMessageID.Valid {
		view.ClientMessageID = m.ClientMessageID.String
	}
	return view
}

func FromMessageSlice(items []message.Message) []MessageView {
	views := make([]MessageView, 0, len(items))
	for _, item := range items {
		views = append(views, FromMessage(item))
	}
	return views
}

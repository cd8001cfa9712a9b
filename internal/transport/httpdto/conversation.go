package httpdto

import (
	"time"

	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/services"
)

type StartConversationRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
	ItemID string `json:"item_id"`
}

type ConversationView struct {
	ID           string            `json:"id"`
	ItemID       string            `json:"item_id,omitempty"`
	Active       bool              `json:"active"`
	Participants []ParticipantView `json:"participants"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type ParticipantView struct {
	UserID      string     `json:"user_id"`
	UnreadCount int        `json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
}

type ConversationSummaryView struct {
	ID          string       `json:"id"`
	Peer        UserView     `json:"peer"`
	ItemID      string       `json:"item_id,omitempty"`
	LastMessage *MessageView `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type UserView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationSummaryView `json:"conversations"`
	Total         int64                     `json:"total"`
}

type MarkReadResponse struct {
	UnreadCount int `json:"unread_count"`
}

func FromConversation(c conversation.Conversation) ConversationView {
	view := ConversationView{
		ID:        c.ID.String(),
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ItemID.Valid {
		view.ItemID = c.ItemID.UUID.String()
	}
	for _, p := range c.Participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:      p.UserID.String(),
			UnreadCount: p.UnreadCount,
			LastReadAt:  p.LastReadAt,
		})
	}
	return view
}

func FromConversationSummary(s services.ConversationSummary) ConversationSummaryView {
	view := ConversationSummaryView{
		ID: s.ID.String(),
		Peer: UserView{
			ID:          s.OtherParticipant.ID.String(),
			DisplayName: s.OtherParticipant.DisplayName,
			AvatarURL:   s.OtherParticipant.AvatarURL,
		},
		UnreadCount: s.UnreadCount,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.ItemID.Valid {
		view.ItemID = s.ItemID.UUID.String()
	}
	if s.LastMessage != nil {
		msg := FromMessage(*s.LastMessage)
		view.LastMessage = &msg
	}
	return view
}

func FromConversationSummarySlice(items []services.ConversationSummary) []ConversationSummaryView {
	views := make([]ConversationSummaryView, 0, len(items))
	for _, item := range items {
		views = append(views, FromConversationSummary(item))
	}
	return views
}

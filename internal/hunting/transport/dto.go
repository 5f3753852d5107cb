// Package transport defines the request and response DTOs for the hunting
// HTTP API.
package transport

import (
	"time"

	"leadhunt_backend/internal/hunting/repository"

	"github.com/google/uuid"
)

// Request DTOs

type UpdateSessionRequest struct {
	Tier                string   `json:"tier" validate:"required,oneof=free starter pro scale"`
	Subreddits          []string `json:"subreddits" validate:"required,min=1,max=25,dive,min=1,max=50"`
	Keywords            []string `json:"keywords" validate:"max=20,dive,min=1,max=80"`
	MinScore            int      `json:"minScore" validate:"min=0,max=10"`
	MaxPostAgeHours     int      `json:"maxPostAgeHours" validate:"min=0,max=720"`
	CommentStyle        string   `json:"commentStyle" validate:"omitempty,max=50"`
	RequireApproval     bool     `json:"requireApproval"`
	BusinessDescription string   `json:"businessDescription" validate:"required,min=10,max=1000"`
	TargetCustomer      string   `json:"targetCustomer" validate:"omitempty,max=1000"`
	NotificationEmail   *string  `json:"notificationEmail" validate:"omitempty,email"`
}

type SetDMRequest struct {
	Message string `json:"message" validate:"required,min=1,max=10000"`
}

type SendOutreachRequest struct {
	// CommentText is the optional public follow-up comment posted on the
	// source thread after the DM goes out.
	CommentText string `json:"commentText" validate:"omitempty,max=10000"`
}

type SendMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

// Response DTOs

type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PostID             string     `json:"postId"`
	PostTitle          string     `json:"postTitle"`
	PostBody           string     `json:"postBody"`
	Subreddit          string     `json:"subreddit"`
	PostAuthor         string     `json:"postAuthor"`
	PostURL            string     `json:"postUrl"`
	MatchedKeywords    []string   `json:"matchedKeywords"`
	RelevanceScore     int        `json:"relevanceScore"`
	Reasoning          string     `json:"reasoning"`
	Intent             string     `json:"intent"`
	Status             string     `json:"status"`
	DMMessage          *string    `json:"dmMessage,omitempty"`
	OutreachCommentID  *string    `json:"outreachCommentId,omitempty"`
	PartialFailureNote *string    `json:"partialFailureNote,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	DMSentAt           *time.Time `json:"dmSentAt,omitempty"`
	ContactedAt        *time.Time `json:"contactedAt,omitempty"`
	RespondedAt        *time.Time `json:"respondedAt,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
}

func ToLeadResponse(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                 l.ID,
		PostID:             l.PostID,
		PostTitle:          l.PostTitle,
		PostBody:           l.PostBody,
		Subreddit:          l.Subreddit,
		PostAuthor:         l.PostAuthor,
		PostURL:            l.PostURL,
		MatchedKeywords:    l.MatchedKeywords,
		RelevanceScore:     l.RelevanceScore,
		Reasoning:          l.Reasoning,
		Intent:             l.Intent,
		Status:             l.Status,
		DMMessage:          l.DMMessage,
		OutreachCommentID:  l.OutreachCommentID,
		PartialFailureNote: l.PartialFailureNote,
		CreatedAt:          l.CreatedAt,
		ApprovedAt:         l.ApprovedAt,
		DMSentAt:           l.DMSentAt,
		ContactedAt:        l.ContactedAt,
		RespondedAt:        l.RespondedAt,
		RejectedAt:         l.RejectedAt,
	}
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

type SendOutreachResponse struct {
	Lead LeadResponse `json:"lead"`
	// PartialFailure is set when the DM went out but the follow-up comment
	// did not. The comment can be retried; the DM is not rolled back.
	PartialFailure *string `json:"partialFailure,omitempty"`
}

type SessionResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Tier                string     `json:"tier"`
	Status              string     `json:"status"`
	Subreddits          []string   `json:"subreddits"`
	Keywords            []string   `json:"keywords"`
	MinScore            int        `json:"minScore"`
	MaxPostAgeHours     int        `json:"maxPostAgeHours"`
	CommentStyle        string     `json:"commentStyle"`
	RequireApproval     bool       `json:"requireApproval"`
	BusinessDescription string     `json:"businessDescription"`
	TargetCustomer      string     `json:"targetCustomer"`
	NotificationEmail   *string    `json:"notificationEmail,omitempty"`
	PostsScanned        int        `json:"postsScanned"`
	LeadsFound          int        `json:"leadsFound"`
	DMsStarted          int        `json:"dmsStarted"`
	ScannedToday        int        `json:"scannedToday"`
	LastRunAt           *time.Time `json:"lastRunAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func ToSessionResponse(s repository.HuntingSession) SessionResponse {
	return SessionResponse{
		ID:                  s.ID,
		Tier:                s.Tier,
		Status:              s.Status,
		Subreddits:          s.Subreddits,
		Keywords:            s.Keywords,
		MinScore:            s.MinScore,
		MaxPostAgeHours:     s.MaxPostAgeHours,
		CommentStyle:        s.CommentStyle,
		RequireApproval:     s.RequireApproval,
		BusinessDescription: s.BusinessDescription,
		TargetCustomer:      s.TargetCustomer,
		NotificationEmail:   s.NotificationEmail,
		PostsScanned:        s.PostsScanned,
		LeadsFound:          s.LeadsFound,
		DMsStarted:          s.DMsStarted,
		ScannedToday:        s.ScannedToday,
		LastRunAt:           s.LastRunAt,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

type MessageResponse struct {
	ID                uuid.UUID `json:"id"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	IsFromUser        bool      `json:"isFromUser"`
	Body              string    `json:"body"`
	DeliveryStatus    *string   `json:"deliveryStatus,omitempty"`
	SentAt            time.Time `json:"sentAt"`
}

type ConversationResponse struct {
	ID           uuid.UUID         `json:"id"`
	LeadID       uuid.UUID         `json:"leadId"`
	Counterparty string            `json:"counterparty"`
	Messages     []MessageResponse `json:"messages"`
}

func ToConversationResponse(c repository.Conversation, msgs []repository.ConversationMessage) ConversationResponse {
	out := ConversationResponse{
		ID:           c.ID,
		LeadID:       c.LeadID,
		Counterparty: c.Counterparty,
		Messages:     make([]MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, MessageResponse{
			ID:                m.ID,
			ProviderMessageID: m.ProviderMessageID,
			IsFromUser:        m.IsFromUser,
			Body:              m.Body,
			DeliveryStatus:    m.DeliveryStatus,
			SentAt:            m.SentAt,
		})
	}
	return out
}

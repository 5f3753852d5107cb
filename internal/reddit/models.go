// Package reddit provides the Reddit API adapter: candidate post search,
// inbox access, outreach delivery, and per-tenant credential management.
package reddit

import (
	"time"
)

// Post is a normalized candidate post as returned by subreddit search.
// It is ephemeral: consumed by the scorer and discarded after lead creation.
type Post struct {
	ID           string
	Fullname     string // provider thing id, e.g. "t3_abc123"
	Title        string
	Body         string
	Subreddit    string
	Author       string
	Permalink    string
	Score        int
	CommentCount int
	CreatedAt    time.Time
	IsSelf       bool
	Over18       bool
}

// MessageKind distinguishes private messages from comment replies.
type MessageKind string

const (
	MessageKindPrivate      MessageKind = "private_message"
	MessageKindCommentReply MessageKind = "comment_reply"
)

// Message is a normalized inbox or sent item.
type Message struct {
	ID        string
	Fullname  string // e.g. "t4_xyz" for messages, "t1_xyz" for comment replies
	Kind      MessageKind
	Author    string // counterparty handle for inbound, recipient for outbound
	Dest      string
	Subject   string
	Body      string
	ParentID  string // parent thing id for comment replies
	CreatedAt time.Time
	Outbound  bool
}

// listingEnvelope is the standard Reddit pagination wrapper.
type listingEnvelope struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	After    string         `json:"after"`
	Children []listingChild `json:"children"`
}

type listingChild struct {
	Kind string `json:"kind"`
	Data thing  `json:"data"`
}

// thing is the union of the post (t3) and message (t1/t4) fields we consume.
type thing struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Body        string  `json:"body"`
	Subject     string  `json:"subject"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Dest        string  `json:"dest"`
	Permalink   string  `json:"permalink"`
	ParentID    string  `json:"parent_id"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	IsSelf      bool    `json:"is_self"`
	Over18      bool    `json:"over_18"`
	WasComment  bool    `json:"was_comment"`
}

func (t thing) toPost() Post {
	return Post{
		ID:           t.ID,
		Fullname:     t.Name,
		Title:        t.Title,
		Body:         t.SelfText,
		Subreddit:    t.Subreddit,
		Author:       t.Author,
		Permalink:    t.Permalink,
		Score:        t.Score,
		CommentCount: t.NumComments,
		CreatedAt:    time.Unix(int64(t.CreatedUTC), 0).UTC(),
		IsSelf:       t.IsSelf,
		Over18:       t.Over18,
	}
}

func (t thing) toMessage(outbound bool) Message {
	kind := MessageKindPrivate
	if t.WasComment {
		kind = MessageKindCommentReply
	}
	return Message{
		ID:        t.ID,
		Fullname:  t.Name,
		Kind:      kind,
		Author:    t.Author,
		Dest:      t.Dest,
		Subject:   t.Subject,
		Body:      t.Body,
		ParentID:  t.ParentID,
		CreatedAt: time.Unix(int64(t.CreatedUTC), 0).UTC(),
		Outbound:  outbound,
	}
}

// tokenResponse is the provider token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

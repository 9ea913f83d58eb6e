package model

import "time"

// Profile is the public part of an identity, stored at user/{id}
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Bio         string `json:"bio"`
}

// Post is a document of the posts collection. LikerIDs is a set.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName,omitempty"`
	AuthorAvatar string    `json:"authorAvatar,omitempty"`
	Text         string    `json:"text"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LikerIDs     []string  `json:"likerIds"`
}

// LikedBy reports whether identityID is in the liker set
func (p *Post) LikedBy(identityID string) bool {
	for _, id := range p.LikerIDs {
		if id == identityID {
			return true
		}
	}
	return false
}

// FeedItem is the denormalized view of a post shown in a feed
type FeedItem struct {
	Post
	CommentCount int  `json:"commentCount"`
	LikeCount    int  `json:"likeCount"`
	LikedByMe    bool `json:"likedByMe"`
}

// Comment is an append-only child of a post
type Comment struct {
	ID           string    `json:"id"`
	PostID       string    `json:"postId"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ParticipantSnapshot is a copy of a profile taken when a conversation was created
type ParticipantSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Conversation is a two-party chat keyed by the sorted participant pair
type Conversation struct {
	ID             string                `json:"id"`
	ParticipantIDs []string              `json:"participantIds"`
	Participants   []ParticipantSnapshot `json:"participantSnapshot"`
	LastMessage    string                `json:"lastMessage"`
	LastMessageAt  time.Time             `json:"lastMessageAt"`
}

// HasParticipant reports whether identityID takes part in the conversation
func (c *Conversation) HasParticipant(identityID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == identityID {
			return true
		}
	}
	return false
}

// Other returns the snapshot of the participant that is not identityID
func (c *Conversation) Other(identityID string) ParticipantSnapshot {
	for _, p := range c.Participants {
		if p.ID != identityID {
			return p
		}
	}
	return ParticipantSnapshot{}
}

// ConversationEntry is one row of the conversation directory
type ConversationEntry struct {
	Conversation
	With ParticipantSnapshot `json:"with"`
}

// OpenResult is what a caller needs to navigate to a conversation
type OpenResult struct {
	ConversationID string `json:"conversationId"`
	TargetID       string `json:"targetId"`
	TargetName     string `json:"targetName"`
}

// Message is an append-only child of a conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FollowCounts sums both sides of an identity's follow graph
type FollowCounts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

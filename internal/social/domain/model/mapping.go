package model

import (
	"fmt"
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	storemodel "social-connect/internal/store/domain/model"
)

// Documents are schema-less; the decoders below reject anything that does not
// carry the fields an entity needs instead of filling in defaults.

func malformed(doc *storemodel.Document, field, problem string) error {
	return errors.NewValidationError(fmt.Sprintf("%s: field %q %s", doc.Path, field, problem)).
		WithCode(errors.CodeMalformedDocument).
		WithDetail("path", doc.Path).
		WithDetail("field", field)
}

func reqString(doc *storemodel.Document, field string) (string, error) {
	v, ok := doc.Data[field]
	if !ok {
		return "", malformed(doc, field, "is missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed(doc, field, "is not a string")
	}
	return s, nil
}

func optString(doc *storemodel.Document, field string) (string, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed(doc, field, "is not a string")
	}
	return s, nil
}

func reqTime(doc *storemodel.Document, field string) (time.Time, error) {
	v, ok := doc.Data[field]
	if !ok {
		return time.Time{}, malformed(doc, field, "is missing")
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, malformed(doc, field, "is not a timestamp")
	}
	return t, nil
}

func optTime(doc *storemodel.Document, field string) (time.Time, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, malformed(doc, field, "is not a timestamp")
	}
	return t, nil
}

func reqList(doc *storemodel.Document, field string) ([]interface{}, error) {
	v, ok := doc.Data[field]
	if !ok {
		return nil, malformed(doc, field, "is missing")
	}
	switch list := v.(type) {
	case []interface{}:
		return list, nil
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	default:
		return nil, malformed(doc, field, "is not a list")
	}
}

func reqStringList(doc *storemodel.Document, field string) ([]string, error) {
	list, err := reqList(doc, field)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, malformed(doc, field, "holds a non-string element")
		}
		out = append(out, s)
	}
	return out, nil
}

// ProfileFromDocument decodes user/{id}
func ProfileFromDocument(doc *storemodel.Document) (*Profile, error) {
	p := &Profile{ID: doc.ID}
	var err error
	if p.DisplayName, err = reqString(doc, "displayName"); err != nil {
		return nil, err
	}
	if p.AvatarURL, err = optString(doc, "avatarUrl"); err != nil {
		return nil, err
	}
	if p.Bio, err = optString(doc, "bio"); err != nil {
		return nil, err
	}
	return p, nil
}

// PostFromDocument decodes posts/{id}
func PostFromDocument(doc *storemodel.Document) (*Post, error) {
	p := &Post{ID: doc.ID}
	var err error
	if p.AuthorID, err = reqString(doc, "authorId"); err != nil {
		return nil, err
	}
	if p.Text, err = reqString(doc, "text"); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = reqTime(doc, "createdAt"); err != nil {
		return nil, err
	}
	if p.LikerIDs, err = reqStringList(doc, "likerIds"); err != nil {
		return nil, err
	}
	if p.ImageURL, err = optString(doc, "imageUrl"); err != nil {
		return nil, err
	}
	if p.AuthorName, err = optString(doc, "authorName"); err != nil {
		return nil, err
	}
	if p.AuthorAvatar, err = optString(doc, "authorAvatar"); err != nil {
		return nil, err
	}
	return p, nil
}

// CommentFromDocument decodes posts/{postId}/comments/{id}
func CommentFromDocument(doc *storemodel.Document) (*Comment, error) {
	c := &Comment{ID: doc.ID, PostID: docpath.ID(docpath.Parent(docpath.Parent(doc.Path)))}
	var err error
	if c.AuthorID, err = reqString(doc, "authorId"); err != nil {
		return nil, err
	}
	if c.Text, err = reqString(doc, "text"); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = reqTime(doc, "createdAt"); err != nil {
		return nil, err
	}
	if c.AuthorName, err = optString(doc, "authorName"); err != nil {
		return nil, err
	}
	if c.AuthorAvatar, err = optString(doc, "authorAvatar"); err != nil {
		return nil, err
	}
	return c, nil
}

// ConversationFromDocument decodes chats/{id}
func ConversationFromDocument(doc *storemodel.Document) (*Conversation, error) {
	c := &Conversation{ID: doc.ID}
	var err error
	if c.ParticipantIDs, err = reqStringList(doc, "participantIds"); err != nil {
		return nil, err
	}
	if len(c.ParticipantIDs) != 2 {
		return nil, malformed(doc, "participantIds", "must hold exactly two identities")
	}

	snapshots, err := reqList(doc, "participantSnapshot")
	if err != nil {
		return nil, err
	}
	for _, raw := range snapshots {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, malformed(doc, "participantSnapshot", "holds a non-object element")
		}
		id, _ := m["id"].(string)
		name, _ := m["name"].(string)
		avatar, _ := m["avatar"].(string)
		if id == "" {
			return nil, malformed(doc, "participantSnapshot", "holds an element without id")
		}
		c.Participants = append(c.Participants, ParticipantSnapshot{ID: id, Name: name, Avatar: avatar})
	}

	if c.LastMessage, err = optString(doc, "lastMessage"); err != nil {
		return nil, err
	}
	if c.LastMessageAt, err = optTime(doc, "lastMessageAt"); err != nil {
		return nil, err
	}
	return c, nil
}

// MessageFromDocument decodes chats/{chatId}/messages/{id}
func MessageFromDocument(doc *storemodel.Document) (*Message, error) {
	m := &Message{ID: doc.ID, ConversationID: docpath.ID(docpath.Parent(docpath.Parent(doc.Path)))}
	var err error
	if m.SenderID, err = reqString(doc, "senderId"); err != nil {
		return nil, err
	}
	if m.Text, err = reqString(doc, "text"); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = reqTime(doc, "createdAt"); err != nil {
		return nil, err
	}
	return m, nil
}

// SnapshotData returns the document fields that embed p into other documents
func (s ParticipantSnapshot) SnapshotData() map[string]interface{} {
	return map[string]interface{}{"id": s.ID, "name": s.Name, "avatar": s.Avatar}
}

// Snapshot copies the profile fields used in denormalized records
func (p *Profile) Snapshot() ParticipantSnapshot {
	return ParticipantSnapshot{ID: p.ID, Name: p.DisplayName, Avatar: p.AvatarURL}
}

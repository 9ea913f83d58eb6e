package model

import (
	"testing"
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	storemodel "social-connect/internal/store/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(path string, data map[string]interface{}) *storemodel.Document {
	return &storemodel.Document{ID: docpath.ID(path), Path: path, Data: data}
}

func TestPostFromDocument(t *testing.T) {
	now := time.Now().UTC()
	p, err := PostFromDocument(doc("posts/p1", map[string]interface{}{
		"authorId": "u1", "text": "hi", "createdAt": now,
		"likerIds": []interface{}{"u2", "u3"}, "imageUrl": "https://img",
	}))
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, []string{"u2", "u3"}, p.LikerIDs)
	assert.True(t, p.LikedBy("u3"))
	assert.False(t, p.LikedBy("u1"))
	assert.Equal(t, "https://img", p.ImageURL)
}

func TestPostFromDocument_FailsClosed(t *testing.T) {
	now := time.Now()
	cases := map[string]map[string]interface{}{
		"missing author":  {"text": "hi", "createdAt": now, "likerIds": []interface{}{}},
		"text not string": {"authorId": "u1", "text": 4, "createdAt": now, "likerIds": []interface{}{}},
		"bad timestamp":   {"authorId": "u1", "text": "hi", "createdAt": "yesterday", "likerIds": []interface{}{}},
		"missing likers":  {"authorId": "u1", "text": "hi", "createdAt": now},
		"mixed likers":    {"authorId": "u1", "text": "hi", "createdAt": now, "likerIds": []interface{}{"u2", 7}},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := PostFromDocument(doc("posts/p1", data))
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, errors.CodeMalformedDocument, errors.CodeOf(err))
		})
	}
}

func TestProfileFromDocument(t *testing.T) {
	p, err := ProfileFromDocument(doc("user/u1", map[string]interface{}{"displayName": "Ann", "bio": "hey"}))
	require.NoError(t, err)
	assert.Equal(t, Profile{ID: "u1", DisplayName: "Ann", Bio: "hey"}, *p)
	assert.Equal(t, ParticipantSnapshot{ID: "u1", Name: "Ann"}, p.Snapshot())

	_, err = ProfileFromDocument(doc("user/u1", map[string]interface{}{"bio": "hey"}))
	assert.True(t, errors.IsValidation(err))
}

func TestConversationFromDocument(t *testing.T) {
	c, err := ConversationFromDocument(doc("chats/u1_u2", map[string]interface{}{
		"participantIds": []string{"u1", "u2"},
		"participantSnapshot": []interface{}{
			map[string]interface{}{"id": "u1", "name": "Ann", "avatar": ""},
			map[string]interface{}{"id": "u2", "name": "Bob", "avatar": "b.png"},
		},
		"lastMessage": "hello",
	}))
	require.NoError(t, err)
	assert.True(t, c.HasParticipant("u2"))
	assert.Equal(t, "Bob", c.Other("u1").Name)
	assert.True(t, c.LastMessageAt.IsZero())

	_, err = ConversationFromDocument(doc("chats/x", map[string]interface{}{
		"participantIds":      []interface{}{"u1"},
		"participantSnapshot": []interface{}{},
	}))
	assert.True(t, errors.IsValidation(err))
}

func TestChildDecodersTakeParentID(t *testing.T) {
	now := time.Now()
	c, err := CommentFromDocument(doc("posts/p1/comments/c1", map[string]interface{}{
		"authorId": "u1", "text": "nice", "createdAt": now,
	}))
	require.NoError(t, err)
	assert.Equal(t, "p1", c.PostID)

	m, err := MessageFromDocument(doc("chats/u1_u2/messages/m1", map[string]interface{}{
		"senderId": "u1", "text": "hello", "createdAt": now,
	}))
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", m.ConversationID)

	_, err = MessageFromDocument(doc("chats/u1_u2/messages/m1", map[string]interface{}{"senderId": "u1", "text": "hello"}))
	assert.True(t, errors.IsValidation(err))
}

package docpath

import (
	"regexp"
	"strings"

	"social-connect/internal/shared/errors"
)

// Root collections and subcollections used by the app
const (
	CollectionUsers     = "user"
	CollectionFollowers = "followers"
	CollectionFollowing = "following"
	CollectionPosts     = "posts"
	CollectionComments  = "comments"
	CollectionChats     = "chats"
	CollectionMessages  = "messages"
)

// Valid ID pattern (alphanumeric, hyphens, underscores)
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Segments splits a slash separated path, dropping empty segments
func Segments(path string) []string {
	if path == "" {
		return []string{}
	}
	var result []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			result = append(result, segment)
		}
	}
	return result
}

// Join joins segments into a path
func Join(segments ...string) string {
	var valid []string
	for _, segment := range segments {
		if segment != "" {
			valid = append(valid, strings.Trim(segment, "/"))
		}
	}
	return strings.Join(valid, "/")
}

// IsValidID checks a single path segment
func IsValidID(id string) bool {
	if id == "" || len(id) > 1500 {
		return false
	}
	return validIDPattern.MatchString(id)
}

// IsDocumentPath checks if a path names a document (even number of segments)
func IsDocumentPath(path string) bool {
	segments := Segments(path)
	return len(segments) > 0 && len(segments)%2 == 0
}

// IsCollectionPath checks if a path names a collection (odd number of segments)
func IsCollectionPath(path string) bool {
	segments := Segments(path)
	return len(segments) > 0 && len(segments)%2 == 1
}

// ValidateDocumentPath fails with a ValidationError on malformed document paths
func ValidateDocumentPath(path string) error {
	return validate(path, "document", 0)
}

// ValidateCollectionPath fails with a ValidationError on malformed collection paths
func ValidateCollectionPath(path string) error {
	return validate(path, "collection", 1)
}

func validate(path, kind string, parity int) error {
	segments := Segments(path)
	if len(segments) == 0 {
		return errors.NewValidationError(kind + " path cannot be empty")
	}
	if len(segments)%2 != parity {
		return errors.NewValidationError("invalid "+kind+" path").
			WithDetail("path", path)
	}
	for i, segment := range segments {
		if !IsValidID(segment) {
			return errors.NewValidationError("invalid segment in "+kind+" path").
				WithDetail("segment", segment).
				WithDetail("position", i)
		}
	}
	return nil
}

// Parent returns the collection path containing a document path
func Parent(documentPath string) string {
	segments := Segments(documentPath)
	if len(segments) < 2 {
		return ""
	}
	return Join(segments[:len(segments)-1]...)
}

// ID returns the last segment of a path
func ID(path string) string {
	segments := Segments(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// User is the profile document of an identity
func User(id string) string { return Join(CollectionUsers, id) }

// Followers is the collection of identities following id
func Followers(id string) string { return Join(CollectionUsers, id, CollectionFollowers) }

// Following is the collection of identities id follows
func Following(id string) string { return Join(CollectionUsers, id, CollectionFollowing) }

// FollowingMarker is the follower-side record of follower -> followee
func FollowingMarker(follower, followee string) string {
	return Join(Following(follower), followee)
}

// FollowerMarker is the followee-side record of follower -> followee
func FollowerMarker(followee, follower string) string {
	return Join(Followers(followee), follower)
}

// Post is a post document
func Post(id string) string { return Join(CollectionPosts, id) }

// Comments is the comment subcollection of a post
func Comments(postID string) string { return Join(CollectionPosts, postID, CollectionComments) }

// Chat is a conversation document
func Chat(id string) string { return Join(CollectionChats, id) }

// Messages is the message subcollection of a conversation
func Messages(chatID string) string { return Join(CollectionChats, chatID, CollectionMessages) }

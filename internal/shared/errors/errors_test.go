package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Behavior(t *testing.T) {
	err := NewValidationError("text is empty").WithCode(CodeEmptyText).WithDetail("field", "text").WithComponent("comment-thread")
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "text is empty", err.Message)
	assert.Equal(t, CodeEmptyText, err.Code)
	assert.Equal(t, "comment-thread", err.Component)
	assert.Equal(t, "text", err.Details["field"])
	assert.Equal(t, "text is empty", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.HTTPCode)
}

func TestAppError_WithCause_Unwrap(t *testing.T) {
	cause := ErrDocumentNotFound
	err := NewNotFoundError("post").WithCause(cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
	assert.Equal(t, "post not found: document not found", err.Error())
}

func TestClassifiers(t *testing.T) {
	nf := NewNotFoundError("doc")
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsValidation(nf))
	assert.False(t, IsAuth(nf))
	assert.False(t, IsRemote(nf))

	assert.True(t, IsValidation(NewValidationError("bad")))
	assert.True(t, IsAuth(NotSignedIn()))
	assert.True(t, IsAuth(NewForbiddenError("not yours")))
	assert.True(t, IsRemote(NewRemoteError("store down")))

	assert.True(t, IsNotFound(fmt.Errorf("read: %w", ErrDocumentNotFound)))
	assert.True(t, IsAuth(ErrTokenExpired))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "noop"))

	validation := NewValidationError("bad")
	assert.Same(t, validation, Wrap(validation, "ignored"))

	wrapped := Wrap(fmt.Errorf("dial tcp: refused"), "toggle like")
	assert.True(t, IsRemote(wrapped))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(wrapped))

	missing := Wrap(ErrDocumentNotFound, "post")
	assert.True(t, IsNotFound(missing))
}

func TestCodeOfAndStatus(t *testing.T) {
	err := NewRemoteError("partial follow").WithCode(CodeFollowEdgeInconsistent)
	assert.Equal(t, CodeFollowEdgeInconsistent, CodeOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(NewForbiddenError("x")))
}

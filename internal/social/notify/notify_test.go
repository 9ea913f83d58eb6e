package notify

import (
	"context"
	"testing"

	"social-connect/internal/shared/contextkeys"
	"social-connect/internal/shared/errors"

	"github.com/stretchr/testify/assert"
)

func TestFailureCarriesIdentityAndCode(t *testing.T) {
	ctx := context.WithValue(context.Background(), contextkeys.IdentityIDKey, "u1")
	n := Failure(ctx, "toggle-like", errors.NewRemoteError("store down").WithCode(errors.CodeUnknown))
	assert.Equal(t, "u1", n.IdentityID)
	assert.Equal(t, "toggle-like", n.Action)
	assert.Equal(t, errors.CodeUnknown, n.Code)
	assert.False(t, n.At.IsZero())
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b, NewLogNotifier(nil)}
	m.Notify(context.Background(), Notification{Action: "send-message"})
	assert.Equal(t, []string{"send-message"}, a.Actions())
	assert.Len(t, b.All(), 1)
}

func TestInboxRoutesByIdentity(t *testing.T) {
	inbox := NewInbox()
	ch1, cancel1 := inbox.Subscribe("u1")
	ch2, cancel2 := inbox.Subscribe("u2")
	defer cancel2()

	inbox.Notify(context.Background(), Notification{IdentityID: "u1", Action: "follow"})
	assert.Equal(t, "follow", (<-ch1).Action)
	select {
	case <-ch2:
		t.Fatal("u2 received a notification for u1")
	default:
	}

	cancel1()
	cancel1()
	_, ok := <-ch1
	assert.False(t, ok)
	inbox.Notify(context.Background(), Notification{IdentityID: "u1", Action: "late"})
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyWrite_ServerTimestampAndMerge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := map[string]interface{}{"participantIds": []interface{}{"u1", "u2"}, "lastMessage": "old"}

	out := ApplyWrite(base, map[string]interface{}{
		"lastMessage":   "hello",
		"lastMessageAt": ServerTimestamp,
	}, now)

	assert.Equal(t, "hello", out["lastMessage"])
	assert.Equal(t, now, out["lastMessageAt"])
	assert.Equal(t, []interface{}{"u1", "u2"}, out["participantIds"])
	assert.Equal(t, "old", base["lastMessage"], "base must not be mutated")
}

func TestApplyWrite_ArrayUnionAndRemove(t *testing.T) {
	now := time.Now()
	base := map[string]interface{}{"likerIds": []interface{}{"u2"}}

	out := ApplyWrite(base, map[string]interface{}{"likerIds": ArrayUnion("u1", "u2")}, now)
	assert.Equal(t, []interface{}{"u2", "u1"}, out["likerIds"])

	out = ApplyWrite(out, map[string]interface{}{"likerIds": ArrayRemove("u2", "u9")}, now)
	assert.Equal(t, []interface{}{"u1"}, out["likerIds"])

	out = ApplyWrite(nil, map[string]interface{}{"likerIds": ArrayRemove("u1")}, now)
	assert.Equal(t, []interface{}{}, out["likerIds"])
}

func TestDocumentClone_IsDeep(t *testing.T) {
	d := &Document{ID: "p1", Data: map[string]interface{}{
		"likerIds": []interface{}{"u1"},
		"author":   map[string]interface{}{"name": "Ann"},
		"tags":     []string{"x"},
	}}
	c := d.Clone()
	c.Data["likerIds"].([]interface{})[0] = "zz"
	c.Data["author"].(map[string]interface{})["name"] = "Bob"

	assert.Equal(t, "u1", d.Data["likerIds"].([]interface{})[0])
	assert.Equal(t, "Ann", d.Data["author"].(map[string]interface{})["name"])
	assert.Equal(t, []interface{}{"x"}, c.Data["tags"])
	assert.Nil(t, (*Document)(nil).Clone())
}

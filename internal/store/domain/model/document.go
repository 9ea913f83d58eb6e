package model

import "time"

// Document is a point-in-time copy of a stored document.
type Document struct {
	ID         string                 `json:"id"`
	Path       string                 `json:"path"`
	Data       map[string]interface{} `json:"data"`
	CreateTime time.Time              `json:"createTime"`
	UpdateTime time.Time              `json:"updateTime"`
}

// SetOptions controls SetDocument. Merge keeps fields not named in the write.
type SetOptions struct {
	Merge bool
}

// Clone returns a deep copy so callers can never mutate store-owned state
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		ID:         d.ID,
		Path:       d.Path,
		Data:       CloneData(d.Data),
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}
}

// CloneData deep copies a document payload
func CloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = CloneData(e)
		}
		return out
	default:
		return val
	}
}

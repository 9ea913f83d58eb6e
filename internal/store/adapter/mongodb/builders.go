package mongodb

import (
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/store/domain/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func dataField(field string) string { return "data." + field }

var operatorMap = map[model.Operator]string{
	model.OperatorEqual:              "$eq",
	model.OperatorLessThan:           "$lt",
	model.OperatorLessThanOrEqual:    "$lte",
	model.OperatorGreaterThan:        "$gt",
	model.OperatorGreaterThanOrEqual: "$gte",
}

// buildFilter translates a query into a Mongo filter. Several range filters on
// one field are merged into a single condition document.
func buildFilter(q model.Query) bson.M {
	filter := bson.M{"collection": q.Collection}
	conditions := make(map[string]bson.M)
	for _, f := range q.Filters {
		key := dataField(f.Field)
		if conditions[key] == nil {
			conditions[key] = bson.M{}
		}
		if f.Operator == model.OperatorArrayContains {
			conditions[key]["$elemMatch"] = bson.M{"$eq": f.Value}
			continue
		}
		conditions[key][operatorMap[f.Operator]] = f.Value
	}
	for _, o := range q.Orders {
		key := dataField(o.Field)
		if conditions[key] == nil {
			conditions[key] = bson.M{}
		}
		conditions[key]["$exists"] = true
	}
	for key, cond := range conditions {
		filter[key] = cond
	}
	return filter
}

func buildSort(q model.Query) bson.D {
	sort := bson.D{}
	for _, o := range q.Orders {
		dir := 1
		if o.Direction == model.DirectionDescending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: dataField(o.Field), Value: dir})
	}
	return append(sort, bson.E{Key: "docId", Value: 1})
}

// buildMergeUpdate maps field writes onto update operators so transforms run
// atomically on the server: ArrayUnion -> $addToSet, ArrayRemove -> $pullAll,
// ServerTimestamp -> $set of now, the same instant stamped on updateTime.
func buildMergeUpdate(fields map[string]interface{}, now time.Time) bson.M {
	set := bson.M{"updateTime": now}
	addToSet := bson.M{}
	pullAll := bson.M{}

	for field, value := range fields {
		key := dataField(field)
		switch v := value.(type) {
		case model.FieldValue:
			if v == model.ServerTimestamp {
				set[key] = now
			} else {
				set[key] = string(v)
			}
		case model.ArrayTransform:
			switch v.Op {
			case model.ArrayOpUnion:
				addToSet[key] = bson.M{"$each": v.Elements}
			case model.ArrayOpRemove:
				pullAll[key] = v.Elements
			}
		default:
			set[key] = v
		}
	}

	update := bson.M{"$set": set}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pullAll) > 0 {
		update["$pullAll"] = pullAll
	}
	return update
}

func addSetOnInsert(update bson.M, path string, now time.Time) {
	update["$setOnInsert"] = bson.M{
		"collection": docpath.Parent(path),
		"docId":      docpath.ID(path),
		"createTime": now,
	}
}

// normalizeValue converts driver types back to the plain values the rest of the
// module works with.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalizeValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalizeValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case int32:
		return int64(val)
	default:
		return val
	}
}

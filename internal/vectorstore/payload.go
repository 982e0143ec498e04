package vectorstore

import "github.com/qdrant/go-client/qdrant"

// fablePayload converts a fable into a Qdrant point payload.
func fablePayload(f Fable) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"title":      {Kind: &qdrant.Value_StringValue{StringValue: f.Title}},
		"content":    {Kind: &qdrant.Value_StringValue{StringValue: f.Content}},
		"moral":      {Kind: &qdrant.Value_StringValue{StringValue: f.Moral}},
		"language":   {Kind: &qdrant.Value_StringValue{StringValue: f.Language}},
		"word_count": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(f.WordCount)}},
	}
}

// payloadFable reconstructs a fable from a point ID and payload.
func payloadFable(id uint64, payload map[string]*qdrant.Value) Fable {
	f := Fable{ID: int(id)}
	if v, ok := payload["title"]; ok {
		f.Title = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		f.Content = v.GetStringValue()
	}
	if v, ok := payload["moral"]; ok {
		f.Moral = v.GetStringValue()
	}
	if v, ok := payload["language"]; ok {
		f.Language = v.GetStringValue()
	}
	if v, ok := payload["word_count"]; ok {
		f.WordCount = int(v.GetIntegerValue())
	}
	return f
}

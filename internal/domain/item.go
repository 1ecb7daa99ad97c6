package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// TargetType decides which schema, prompt and scoring rules apply to an item.
type TargetType string

const (
	TargetLocalPlace TargetType = "local_place"
	TargetEvent      TargetType = "event"
)

// IsPlace reports whether the item is headed for a local place record.
func (t TargetType) IsPlace() bool {
	return t == TargetLocalPlace
}

// Meta keys persisted alongside the payload.
const (
	MetaClassify      = "_hpl_classify"
	MetaScore         = "_hpl_score"
	MetaRewrite       = "_hpl_rewrite_md"
	MetaError         = "_hpl_error"
	MetaPublishedPost = "_hpl_published_post_id"
	MetaSourcePost    = "_hpl_source_post_id"
	MetaReimport      = "_hpl_reimport"
)

// IngestItem is one unit of scraped data moving through the pipeline.
type IngestItem struct {
	ID         int64
	TargetType TargetType
	Stage      Stage
	Payload    Payload
	Meta       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Classification returns the stored classification, never nil.
func (i IngestItem) Classification() Payload {
	if raw, ok := i.Meta[MetaClassify].(map[string]any); ok {
		return Payload(raw)
	}
	return Payload{}
}

// Rewrite returns the generated markdown copy, if any.
func (i IngestItem) Rewrite() string {
	s, _ := i.Meta[MetaRewrite].(string)
	return s
}

// SourcePostID returns the published record a re-import points to.
func (i IngestItem) SourcePostID() int64 {
	id, _ := AsInt(i.Meta[MetaSourcePost])
	return id
}

// PublishedPostID returns the record an earlier publish run created, if any.
func (i IngestItem) PublishedPostID() int64 {
	id, _ := AsInt(i.Meta[MetaPublishedPost])
	return id
}

// IsReimport reports whether the item was flagged as a re-import of an existing record.
func (i IngestItem) IsReimport() bool {
	return Truthy(i.Meta[MetaReimport]) && i.SourcePostID() > 0
}

// Score resolves the stored score, accepting either a bare number or an
// object carrying a "score" field.
func (i IngestItem) Score() (int, bool) {
	switch v := i.Meta[MetaScore].(type) {
	case map[string]any:
		n, ok := AsInt(v["score"])
		return int(n), ok
	default:
		n, ok := AsInt(v)
		return int(n), ok
	}
}

// Payload is the working data bag of an item.
type Payload map[string]any

// Clone returns a deep copy made through a JSON round trip.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		out := make(Payload, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	}
	var out Payload
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return Payload{}
	}
	return out
}

// String returns the trimmed string form of key, or "" for missing and non-scalar values.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the numeric value of key.
func (p Payload) Float(key string) (float64, bool) {
	return AsFloat(p[key])
}

// Strings returns key as a list of non-empty strings.
func (p Payload) Strings(key string) []string {
	var out []string
	switch v := p[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// Has reports whether key holds a non-empty value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && !IsEmpty(v)
}

// IsEmpty mirrors loose emptiness: nil, blank strings, zero numbers, false and empty collections.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Payload:
		return len(t) == 0
	default:
		return false
	}
}

// AsFloat converts JSON-ish numbers and numeric strings.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsInt converts to int64, truncating fractions.
func AsInt(v any) (int64, bool) {
	f, ok := AsFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Truthy treats "1", "true", "yes", non-zero numbers and true as set.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	default:
		f, ok := AsFloat(t)
		return ok && f != 0
	}
}

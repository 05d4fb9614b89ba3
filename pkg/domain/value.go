package domain

import (
	"slices"
	"time"
)

// Kind identifies how a field's answer is parsed and stored.
type Kind string

const (
	KindText          Kind = "text"
	KindDate          Kind = "date"
	KindMoney         Kind = "money"
	KindCount         Kind = "count"
	KindStringList    Kind = "string_list"    // split locally
	KindExtractedList Kind = "extracted_list" // resolved by the oracle
	KindMedia         Kind = "media_optional"
)

// Value is a parsed answer. Exactly one payload member is meaningful, selected by Kind.
type Value struct {
	Kind    Kind       `json:"kind"`
	Text    string     `json:"text,omitempty"`
	Time    *time.Time `json:"time,omitempty"`
	Amount  float64    `json:"amount,omitempty"`
	Count   int        `json:"count,omitempty"`
	List    []string   `json:"list,omitempty"`
	Skipped bool       `json:"skipped,omitempty"`
}

func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

func DateValue(t time.Time) Value {
	t = t.UTC()
	return Value{Kind: KindDate, Time: &t}
}

func MoneyValue(amount float64) Value { return Value{Kind: KindMoney, Amount: amount} }

func CountValue(n int) Value { return Value{Kind: KindCount, Count: n} }

// ListValue builds a list value. A nil list is stored as empty.
func ListValue(kind Kind, items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: kind, List: slices.Clone(items)}
}

// MediaValue records an uploaded asset reference.
func MediaValue(ref string) Value { return Value{Kind: KindMedia, Text: ref} }

// SkippedMedia records that an optional media field was explicitly skipped.
func SkippedMedia() Value { return Value{Kind: KindMedia, Skipped: true} }

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	if v.Time != nil {
		t := *v.Time
		out.Time = &t
	}
	if v.List != nil {
		out.List = slices.Clone(v.List)
	}
	return out
}

// Fields is a draft or committed record, keyed by field name.
// Fields only grow as answers are accepted.
type Fields map[string]Value

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v.Clone()
	}
	return out
}

// Has reports whether name holds a non-skipped value.
func (f Fields) Has(name string) bool {
	v, ok := f[name]
	return ok && !v.Skipped
}

func (f Fields) Text(name string) string { return f[name].Text }

func (f Fields) Time(name string) (time.Time, bool) {
	v, ok := f[name]
	if !ok || v.Time == nil {
		return time.Time{}, false
	}
	return *v.Time, true
}

func (f Fields) Amount(name string) (float64, bool) {
	v, ok := f[name]
	if !ok || v.Kind != KindMoney {
		return 0, false
	}
	return v.Amount, true
}

func (f Fields) Count(name string) (int, bool) {
	v, ok := f[name]
	if !ok || v.Kind != KindCount {
		return 0, false
	}
	return v.Count, true
}

// List returns the list held by name, or an empty slice.
func (f Fields) List(name string) []string {
	v, ok := f[name]
	if !ok || v.List == nil {
		return []string{}
	}
	return slices.Clone(v.List)
}

// Provided returns a copy of f without skipped values. Gateways store only
// what was provided.
func (f Fields) Provided() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v.Skipped {
			continue
		}
		out[k] = v.Clone()
	}
	return out
}

// Merge copies incoming values into f. A skipped incoming value never
// replaces a value that was actually provided.
func (f Fields) Merge(incoming Fields) {
	for k, v := range incoming {
		if v.Skipped && f.Has(k) {
			continue
		}
		f[k] = v.Clone()
	}
}

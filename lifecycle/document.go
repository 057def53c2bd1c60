// Package lifecycle validates untrusted S3 lifecycle-configuration documents
// before they are persisted or applied. The wire shape (field names, casing,
// storage-class values) is a compatibility contract with the S3 lifecycle
// API: a validated document is stored and later replayed verbatim during
// restoration, so nothing here may rename or reshape fields beyond the single
// documented Id -> ID normalization.
package lifecycle

import "encoding/json"

// Document is a validated lifecycle configuration.
type Document struct {
	Rules []Rule `json:"Rules"`
}

// Rule is a single validated lifecycle rule.
type Rule struct {
	ID                          string                        `json:"ID"`
	Status                      string                        `json:"Status"`
	Filter                      *Filter                       `json:"Filter,omitempty"`
	Expiration                  *Expiration                   `json:"Expiration,omitempty"`
	Transitions                 []Transition                  `json:"Transitions,omitempty"`
	NoncurrentVersionTransitions []NoncurrentVersionTransition `json:"NoncurrentVersionTransitions,omitempty"`
	NoncurrentVersionExpiration *NoncurrentVersionExpiration  `json:"NoncurrentVersionExpiration,omitempty"`
}

// Rule status literals. Case-sensitive, nothing else is accepted.
const (
	StatusEnabled  = "Enabled"
	StatusDisabled = "Disabled"
)

// Expiration expires current object versions by age or date.
type Expiration struct {
	Days                      *int64 `json:"Days,omitempty"`
	Date                      string `json:"Date,omitempty"`
	ExpiredObjectDeleteMarker *bool  `json:"ExpiredObjectDeleteMarker,omitempty"`
}

// Transition moves current versions to another storage class.
type Transition struct {
	Days         *int64 `json:"Days,omitempty"`
	Date         string `json:"Date,omitempty"`
	StorageClass string `json:"StorageClass"`
}

// NoncurrentVersionTransition moves noncurrent versions to another class.
type NoncurrentVersionTransition struct {
	NoncurrentDays int64  `json:"NoncurrentDays"`
	StorageClass   string `json:"StorageClass"`
}

// NoncurrentVersionExpiration expires noncurrent versions by age.
type NoncurrentVersionExpiration struct {
	NoncurrentDays *int64 `json:"NoncurrentDays,omitempty"`
}

// Filter scopes a rule to a subset of objects. The And sub-object is only
// checked to be object-shaped; its nested fields are not validated further.
type Filter struct {
	Prefix string          `json:"Prefix,omitempty"`
	Tags   []FilterTag     `json:"Tags,omitempty"`
	And    json.RawMessage `json:"And,omitempty"`
}

// FilterTag is a single object tag predicate.
type FilterTag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// storageClasses S3 accepts as transition targets.
var storageClasses = map[string]bool{
	"STANDARD_IA":         true,
	"ONEZONE_IA":          true,
	"INTELLIGENT_TIERING": true,
	"GLACIER":             true,
	"GLACIER_IR":          true,
	"DEEP_ARCHIVE":        true,
}

// JSON returns the canonical serialization of the document. This is what
// gets persisted on the record and replayed on restoration.
func (d *Document) JSON() json.RawMessage {
	raw, err := json.Marshal(d)
	if err != nil {
		// Document contains only marshalable types; this cannot happen for
		// a value produced by Validate.
		panic(err)
	}
	return raw
}

func int64p(v int64) *int64 { return &v }

// AutoArchive is the built-in policy transitioning objects to Glacier after
// 30 days.
func AutoArchive() *Document {
	return &Document{Rules: []Rule{{
		ID:     "AutoArchiveRule",
		Status: StatusEnabled,
		Filter: &Filter{},
		Transitions: []Transition{{
			Days:         int64p(30),
			StorageClass: "GLACIER",
		}},
	}}}
}

// AutoDelete is the built-in policy expiring noncurrent object versions
// after 90 days.
func AutoDelete() *Document {
	return &Document{Rules: []Rule{{
		ID:     "AutoDeleteVersionsRule",
		Status: StatusEnabled,
		Filter: &Filter{},
		NoncurrentVersionExpiration: &NoncurrentVersionExpiration{
			NoncurrentDays: int64p(90),
		},
	}}}
}

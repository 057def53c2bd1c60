package lifecycle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/holvi-cloud/holvi/types"
)

// forbiddenFlatFields are day-count field names from the legacy flat
// lifecycle shape. A document carrying them would be silently misinterpreted
// by the backend, so their presence is a hard failure rather than something
// to ignore or translate.
var forbiddenFlatFields = []string{
	"ExpirationInDays",
	"TransitionInDays",
	"NoncurrentVersionExpirationInDays",
	"NoncurrentVersionTransitionInDays",
}

// Validate parses and validates an untrusted lifecycle document. It has no
// side effects and must be called before any record is persisted or any
// backend call is made. The first failure short-circuits with a message
// precise enough to fix the document without guessing.
func Validate(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return nil, &types.ValidationError{
			Field:   "lifecycle",
			Message: fmt.Sprintf("document must be a JSON object: %v", err),
		}
	}

	rawRules, ok := top["Rules"]
	if !ok {
		return nil, errAt("Rules", "required field is missing")
	}
	ruleList, ok := rawRules.([]any)
	if !ok {
		return nil, errAt("Rules", "must be a list")
	}
	if len(ruleList) == 0 {
		return nil, errAt("Rules", "must contain at least one rule")
	}

	doc := &Document{Rules: make([]Rule, 0, len(ruleList))}
	for i, entry := range ruleList {
		rule, err := validateRule(i, entry)
		if err != nil {
			return nil, err
		}
		doc.Rules = append(doc.Rules, rule)
	}
	return doc, nil
}

func validateRule(idx int, entry any) (Rule, error) {
	path := fmt.Sprintf("Rules[%d]", idx)

	m, ok := entry.(map[string]any)
	if !ok {
		return Rule{}, errAt(path, "rule must be an object")
	}

	if err := rejectFlatFields(path, m); err != nil {
		return Rule{}, err
	}
	if err := rejectUnknownKeys(path, m,
		"ID", "Id", "Status", "Filter", "Expiration", "Transitions",
		"NoncurrentVersionTransitions", "NoncurrentVersionExpiration"); err != nil {
		return Rule{}, err
	}

	var rule Rule

	id, err := ruleID(path, m)
	if err != nil {
		return Rule{}, err
	}
	rule.ID = id

	status, ok := m["Status"].(string)
	if !ok || (status != StatusEnabled && status != StatusDisabled) {
		return Rule{}, errAt(path+".Status", fmt.Sprintf("must be exactly %q or %q", StatusEnabled, StatusDisabled))
	}
	rule.Status = status

	if raw, ok := m["Expiration"]; ok {
		exp, err := validateExpiration(path+".Expiration", raw)
		if err != nil {
			return Rule{}, err
		}
		rule.Expiration = exp
	}

	if raw, ok := m["Transitions"]; ok {
		trs, err := validateTransitions(path+".Transitions", raw)
		if err != nil {
			return Rule{}, err
		}
		rule.Transitions = trs
	}

	if raw, ok := m["NoncurrentVersionTransitions"]; ok {
		nvts, err := validateNoncurrentTransitions(path+".NoncurrentVersionTransitions", raw)
		if err != nil {
			return Rule{}, err
		}
		rule.NoncurrentVersionTransitions = nvts
	}

	if raw, ok := m["NoncurrentVersionExpiration"]; ok {
		nve, err := validateNoncurrentExpiration(path+".NoncurrentVersionExpiration", raw)
		if err != nil {
			return Rule{}, err
		}
		rule.NoncurrentVersionExpiration = nve
	}

	if raw, ok := m["Filter"]; ok {
		filter, err := validateFilter(path+".Filter", raw)
		if err != nil {
			return Rule{}, err
		}
		rule.Filter = filter
	}

	return rule, nil
}

// ruleID accepts both "ID" and "Id" spellings and normalizes to the
// canonical "ID". The backend requires the uppercase spelling; the lowercase
// variant is dropped after normalization.
func ruleID(path string, m map[string]any) (string, error) {
	raw, ok := m["ID"]
	if !ok {
		raw, ok = m["Id"]
	}
	if !ok {
		return "", errAt(path, `rule requires an "ID" field`)
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", errAt(path+".ID", "must be a non-empty string")
	}
	return id, nil
}

func validateExpiration(path string, raw any) (*Expiration, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}
	if err := rejectUnknownKeys(path, m, "Days", "Date", "ExpiredObjectDeleteMarker"); err != nil {
		return nil, err
	}

	exp := &Expiration{}

	_, hasDays := m["Days"]
	_, hasDate := m["Date"]
	if hasDays == hasDate {
		return nil, errAt(path, `exactly one of "Days" or "Date" must be present`)
	}

	if hasDays {
		days, err := dayCount(path+".Days", m["Days"])
		if err != nil {
			return nil, err
		}
		exp.Days = &days
	}
	if hasDate {
		date, ok := m["Date"].(string)
		if !ok {
			return nil, errAt(path+".Date", "must be a string")
		}
		exp.Date = date
	}
	if raw, ok := m["ExpiredObjectDeleteMarker"]; ok {
		marker, ok := raw.(bool)
		if !ok {
			return nil, errAt(path+".ExpiredObjectDeleteMarker", "must be a boolean")
		}
		exp.ExpiredObjectDeleteMarker = &marker
	}
	return exp, nil
}

func validateTransitions(path string, raw any) ([]Transition, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, errAt(path, "must be a list")
	}
	if len(list) == 0 {
		return nil, errAt(path, "must contain at least one transition")
	}

	trs := make([]Transition, 0, len(list))
	for i, entry := range list {
		epath := fmt.Sprintf("%s[%d]", path, i)
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, errAt(epath, "transition must be an object")
		}
		if err := rejectFlatFields(epath, m); err != nil {
			return nil, err
		}
		if err := rejectUnknownKeys(epath, m, "Days", "Date", "StorageClass"); err != nil {
			return nil, err
		}

		var tr Transition
		_, hasDays := m["Days"]
		_, hasDate := m["Date"]
		if hasDays == hasDate {
			return nil, errAt(epath, `exactly one of "Days" or "Date" must be present`)
		}
		if hasDays {
			days, err := dayCount(epath+".Days", m["Days"])
			if err != nil {
				return nil, err
			}
			tr.Days = &days
		}
		if hasDate {
			date, ok := m["Date"].(string)
			if !ok {
				return nil, errAt(epath+".Date", "must be a string")
			}
			tr.Date = date
		}

		sc, err := storageClass(epath+".StorageClass", m)
		if err != nil {
			return nil, err
		}
		tr.StorageClass = sc
		trs = append(trs, tr)
	}
	return trs, nil
}

func validateNoncurrentTransitions(path string, raw any) ([]NoncurrentVersionTransition, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, errAt(path, "must be a list")
	}

	nvts := make([]NoncurrentVersionTransition, 0, len(list))
	for i, entry := range list {
		epath := fmt.Sprintf("%s[%d]", path, i)
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, errAt(epath, "entry must be an object")
		}
		if err := rejectUnknownKeys(epath, m, "NoncurrentDays", "StorageClass"); err != nil {
			return nil, err
		}

		raw, ok := m["NoncurrentDays"]
		if !ok {
			return nil, errAt(epath+".NoncurrentDays", "required field is missing")
		}
		days, err := dayCount(epath+".NoncurrentDays", raw)
		if err != nil {
			return nil, err
		}
		sc, err := storageClass(epath+".StorageClass", m)
		if err != nil {
			return nil, err
		}
		nvts = append(nvts, NoncurrentVersionTransition{NoncurrentDays: days, StorageClass: sc})
	}
	return nvts, nil
}

func validateNoncurrentExpiration(path string, raw any) (*NoncurrentVersionExpiration, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}
	if err := rejectUnknownKeys(path, m, "NoncurrentDays"); err != nil {
		return nil, err
	}

	nve := &NoncurrentVersionExpiration{}
	if raw, ok := m["NoncurrentDays"]; ok {
		days, err := dayCount(path+".NoncurrentDays", raw)
		if err != nil {
			return nil, err
		}
		nve.NoncurrentDays = &days
	}
	return nve, nil
}

func validateFilter(path string, raw any) (*Filter, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}
	if err := rejectUnknownKeys(path, m, "Prefix", "Tags", "And"); err != nil {
		return nil, err
	}

	filter := &Filter{}
	if raw, ok := m["Prefix"]; ok {
		prefix, ok := raw.(string)
		if !ok {
			return nil, errAt(path+".Prefix", "must be a string")
		}
		filter.Prefix = prefix
	}

	if raw, ok := m["Tags"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, errAt(path+".Tags", "must be a list")
		}
		for i, entry := range list {
			epath := fmt.Sprintf("%s.Tags[%d]", path, i)
			tm, ok := entry.(map[string]any)
			if !ok {
				return nil, errAt(epath, "tag must be an object")
			}
			key, ok := tm["Key"].(string)
			if !ok || key == "" {
				return nil, errAt(epath+".Key", "must be a non-empty string")
			}
			value, ok := tm["Value"].(string)
			if !ok || value == "" {
				return nil, errAt(epath+".Value", "must be a non-empty string")
			}
			filter.Tags = append(filter.Tags, FilterTag{Key: key, Value: value})
		}
	}

	if raw, ok := m["And"]; ok {
		// Only shape-checked: nested Prefix/Tags inside And are not
		// validated further.
		andObj, ok := raw.(map[string]any)
		if !ok {
			return nil, errAt(path+".And", "must be an object")
		}
		encoded, err := json.Marshal(andObj)
		if err != nil {
			return nil, errAt(path+".And", "could not be re-encoded")
		}
		filter.And = encoded
	}
	return filter, nil
}

// dayCount requires a non-negative integral JSON number. A numeric string is
// rejected: the backend would not coerce it either.
func dayCount(path string, raw any) (int64, error) {
	num, ok := raw.(json.Number)
	if !ok {
		if _, isStr := raw.(string); isStr {
			return 0, errAt(path, "must be a number, not a numeric string")
		}
		return 0, errAt(path, "must be a non-negative integer")
	}
	v, err := num.Int64()
	if err != nil {
		return 0, errAt(path, "must be an integer")
	}
	if v < 0 {
		return 0, errAt(path, "must not be negative")
	}
	return v, nil
}

func storageClass(path string, m map[string]any) (string, error) {
	raw, ok := m["StorageClass"]
	if !ok {
		return "", errAt(path, "required field is missing")
	}
	sc, ok := raw.(string)
	if !ok || !storageClasses[sc] {
		return "", errAt(path, fmt.Sprintf("must be one of %s", strings.Join(sortedStorageClasses(), ", ")))
	}
	return sc, nil
}

func rejectFlatFields(path string, m map[string]any) error {
	var offending []string
	for _, name := range forbiddenFlatFields {
		if _, ok := m[name]; ok {
			offending = append(offending, name)
		}
	}
	if len(offending) > 0 {
		return errAt(path, fmt.Sprintf("legacy flat field(s) not allowed: %s", strings.Join(offending, ", ")))
	}
	return nil
}

func rejectUnknownKeys(path string, m map[string]any, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}
	var unknown []string
	for k := range m {
		if !allowedSet[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errAt(path, fmt.Sprintf("unrecognized field(s): %s", strings.Join(unknown, ", ")))
	}
	return nil
}

func sortedStorageClasses() []string {
	classes := make([]string, 0, len(storageClasses))
	for sc := range storageClasses {
		classes = append(classes, sc)
	}
	sort.Strings(classes)
	return classes
}

func errAt(path, msg string) error {
	return &types.ValidationError{Field: path, Message: msg}
}

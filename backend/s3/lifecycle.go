package s3

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/holvi-cloud/holvi/lifecycle"
)

// lifecycleRules maps a validated document onto the SDK's rule types. The
// field names and storage-class values carry over unchanged; only the Go
// representation differs.
func lifecycleRules(doc *lifecycle.Document) ([]s3types.LifecycleRule, error) {
	rules := make([]s3types.LifecycleRule, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		rule := s3types.LifecycleRule{
			ID:     aws.String(r.ID),
			Status: s3types.ExpirationStatus(r.Status),
			Filter: lifecycleFilter(r.Filter),
		}

		if r.Expiration != nil {
			exp := &s3types.LifecycleExpiration{
				ExpiredObjectDeleteMarker: r.Expiration.ExpiredObjectDeleteMarker,
			}
			if r.Expiration.Days != nil {
				exp.Days = aws.Int32(int32(*r.Expiration.Days))
			}
			if r.Expiration.Date != "" {
				date, err := parseDate(r.Expiration.Date)
				if err != nil {
					return nil, fmt.Errorf("rule %s expiration date: %w", r.ID, err)
				}
				exp.Date = date
			}
			rule.Expiration = exp
		}

		for _, t := range r.Transitions {
			tr := s3types.Transition{
				StorageClass: s3types.TransitionStorageClass(t.StorageClass),
			}
			if t.Days != nil {
				tr.Days = aws.Int32(int32(*t.Days))
			}
			if t.Date != "" {
				date, err := parseDate(t.Date)
				if err != nil {
					return nil, fmt.Errorf("rule %s transition date: %w", r.ID, err)
				}
				tr.Date = date
			}
			rule.Transitions = append(rule.Transitions, tr)
		}

		for _, nvt := range r.NoncurrentVersionTransitions {
			rule.NoncurrentVersionTransitions = append(rule.NoncurrentVersionTransitions,
				s3types.NoncurrentVersionTransition{
					NoncurrentDays: aws.Int32(int32(nvt.NoncurrentDays)),
					StorageClass:   s3types.TransitionStorageClass(nvt.StorageClass),
				})
		}

		if r.NoncurrentVersionExpiration != nil && r.NoncurrentVersionExpiration.NoncurrentDays != nil {
			rule.NoncurrentVersionExpiration = &s3types.NoncurrentVersionExpiration{
				NoncurrentDays: aws.Int32(int32(*r.NoncurrentVersionExpiration.NoncurrentDays)),
			}
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

func lifecycleFilter(f *lifecycle.Filter) *s3types.LifecycleRuleFilter {
	if f == nil {
		return &s3types.LifecycleRuleFilter{Prefix: aws.String("")}
	}

	filter := &s3types.LifecycleRuleFilter{}
	switch {
	case len(f.And) > 0:
		filter.And = andOperator(f.And)
	case len(f.Tags) == 1 && f.Prefix == "":
		filter.Tag = &s3types.Tag{
			Key:   aws.String(f.Tags[0].Key),
			Value: aws.String(f.Tags[0].Value),
		}
	case len(f.Tags) > 0:
		// Prefix plus tags (or several tags) requires the And operator.
		and := &s3types.LifecycleRuleAndOperator{}
		if f.Prefix != "" {
			and.Prefix = aws.String(f.Prefix)
		}
		for _, tag := range f.Tags {
			and.Tags = append(and.Tags, s3types.Tag{
				Key:   aws.String(tag.Key),
				Value: aws.String(tag.Value),
			})
		}
		filter.And = and
	default:
		filter.Prefix = aws.String(f.Prefix)
	}
	return filter
}

// andOperator best-effort decodes the shape-checked And sub-object. Its
// nested fields were not deep-validated, so unparseable content degrades to
// an empty operator rather than failing the apply.
func andOperator(raw json.RawMessage) *s3types.LifecycleRuleAndOperator {
	var decoded struct {
		Prefix string `json:"Prefix"`
		Tags   []struct {
			Key   string `json:"Key"`
			Value string `json:"Value"`
		} `json:"Tags"`
	}
	_ = json.Unmarshal(raw, &decoded)

	and := &s3types.LifecycleRuleAndOperator{}
	if decoded.Prefix != "" {
		and.Prefix = aws.String(decoded.Prefix)
	}
	for _, tag := range decoded.Tags {
		and.Tags = append(and.Tags, s3types.Tag{
			Key:   aws.String(tag.Key),
			Value: aws.String(tag.Value),
		})
	}
	return and
}

func parseDate(raw string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return aws.Time(t), nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", raw)
}

package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "valid", input: "my-project-1", want: "my-project-1"},
		{name: "trims whitespace", input: "  analytics  ", want: "analytics"},
		{name: "minimum length", input: "abc", want: "abc"},
		{name: "uppercase rejected", input: "MyProject", wantErr: "no uppercase letters allowed"},
		{name: "underscore rejected", input: "my_project", wantErr: "lowercase letters, numbers, and hyphens"},
		{name: "space inside rejected", input: "my project", wantErr: "lowercase letters, numbers, and hyphens"},
		{name: "empty", input: "", wantErr: "lowercase letters, numbers, and hyphens"},
		{name: "too short", input: "ab", wantErr: "between 3 and 50 characters"},
		{name: "too long", input: strings.Repeat("a", 51), wantErr: "between 3 and 50 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDisplayName(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "display_name", verr.Field)
				assert.Contains(t, verr.Message, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerKey(t *testing.T) {
	key := MakeOwnerKey("u-123", "analytics")
	assert.Equal(t, "u-123#analytics", key)

	id, name, err := SplitOwnerKey(key)
	require.NoError(t, err)
	assert.Equal(t, "u-123", id)
	assert.Equal(t, "analytics", name)
}

func TestSplitOwnerKey_Malformed(t *testing.T) {
	for _, key := range []string{"", "nosep", "#leading", "trailing#"} {
		_, _, err := SplitOwnerKey(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestRecordHealRequested(t *testing.T) {
	var r Record
	assert.False(t, r.HealRequested())

	f := false
	r.ShouldHeal = &f
	assert.False(t, r.HealRequested())

	tr := true
	r.ShouldHeal = &tr
	assert.True(t, r.HealRequested())
}

func TestRecordIsOwner(t *testing.T) {
	r := Record{IdentityID: "u-123"}
	assert.True(t, r.IsOwner("u-123"))
	assert.False(t, r.IsOwner("u-456"))
}

func TestValidPolicyMode(t *testing.T) {
	for _, m := range []PolicyMode{PolicyNone, PolicyAutoArchive, PolicyAutoDelete, PolicyCustom} {
		assert.True(t, ValidPolicyMode(m))
	}
	assert.False(t, ValidPolicyMode("archive"))
	assert.False(t, ValidPolicyMode(""))
}

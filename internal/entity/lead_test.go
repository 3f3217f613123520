package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLead_Clone(t *testing.T) {
	yes := true
	orig := Lead{
		Name:             "Ana",
		UTM:              &UTM{Source: "google"},
		AcceptsMarketing: &yes,
		Metadata:         map[string]any{"campaign": "summer"},
	}

	c := orig.Clone()
	c.Metadata["deviceType"] = "mobile"
	c.UTM.Source = "facebook"
	*c.AcceptsMarketing = false

	assert.NotContains(t, orig.Metadata, "deviceType")
	assert.Equal(t, "google", orig.UTM.Source)
	assert.True(t, *orig.AcceptsMarketing)
	assert.Nil(t, c.AcceptsWhatsApp)
}

func TestLead_CloneNilMetadata(t *testing.T) {
	c := Lead{Name: "Ana"}.Clone()

	assert.NotNil(t, c.Metadata)
	assert.Empty(t, c.Metadata)
}

func TestLead_SkipPrimary(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want bool
	}{
		{"absent", nil, false},
		{"bool true", map[string]any{MetaSkipPrimary: true}, true},
		{"bool false", map[string]any{MetaSkipPrimary: false}, false},
		{"string true", map[string]any{MetaSkipPrimary: "true"}, true},
		{"string other", map[string]any{MetaSkipPrimary: "yes"}, false},
		{"number", map[string]any{MetaSkipPrimary: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lead{Metadata: tt.meta}.SkipPrimary())
		})
	}
}

func TestIntentAndSourceValid(t *testing.T) {
	assert.True(t, IntentSell.Valid())
	assert.False(t, Intent("lease").Valid())
	assert.True(t, SourceInstagram.Valid())
	assert.False(t, Source("tiktok").Valid())
}

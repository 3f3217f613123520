package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

func TestValidateLead(t *testing.T) {
	tests := []struct {
		name string
		lead entity.Lead
		want []string
	}{
		{
			name: "email only",
			lead: entity.Lead{Name: "Ana", Email: "ana@x.com"},
		},
		{
			name: "phone only",
			lead: entity.Lead{Name: "Ana", Phone: "+55 (47) 99999-0000"},
		},
		{
			name: "missing contact",
			lead: entity.Lead{Name: "Ana"},
			want: []string{"email or phone required"},
		},
		{
			name: "blank name",
			lead: entity.Lead{Name: "   ", Email: "ana@x.com"},
			want: []string{"name is required"},
		},
		{
			name: "long name",
			lead: entity.Lead{Name: strings.Repeat("a", 201), Email: "ana@x.com"},
			want: []string{"name must not exceed 200 characters"},
		},
		{
			name: "invalid email",
			lead: entity.Lead{Name: "Ana", Email: "ana@"},
			want: []string{"email is invalid"},
		},
		{
			name: "display name form rejected",
			lead: entity.Lead{Name: "Ana", Email: "Ana <ana@x.com>"},
			want: []string{"email is invalid"},
		},
		{
			name: "local phone without area code",
			lead: entity.Lead{Name: "Ana", Phone: "3333-4444"},
		},
		{
			name: "unparseable phone next to a valid email",
			lead: entity.Lead{Name: "Ana", Email: "ana@x.com", Phone: "n/a"},
		},
		{
			name: "foreign phone with extension",
			lead: entity.Lead{Name: "Ana", Email: "ana@x.com", Phone: "+44 (0) 20 7946 0958 ext 12"},
		},
		{
			name: "blank phone does not count as contact",
			lead: entity.Lead{Name: "Ana", Phone: "   "},
			want: []string{"email or phone required"},
		},
		{
			name: "bad enums",
			lead: entity.Lead{Name: "Ana", Email: "ana@x.com", Intent: "lease", Source: "tiktok"},
			want: []string{"intent is invalid", "source is invalid"},
		},
		{
			name: "everything wrong",
			lead: entity.Lead{},
			want: []string{"name is required", "email or phone required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateLead(tt.lead)
			if tt.want == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.want, errs.Messages())
			assert.True(t, IsValidationError(errs))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	verrs := ValidationErrors{
		{Field: "name", Message: "name is required"},
		{Field: "email", Message: "email or phone required"},
	}

	assert.Equal(t, "validation failed: name is required, email or phone required", verrs.Error())
	assert.Equal(t, "name: name is required", verrs[0].Error())

	wrapped := fmt.Errorf("submit: %w", verrs)
	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(assert.AnError))
}

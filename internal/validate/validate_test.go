package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/apperror"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"7", 7, true},
		{"7.5", 7.5, true},
		{"10", 10, true},
		{"1", 1, true},
		{"8.55", 0, false},
		{"0.5", 0, false},
		{"11", 0, false},
		{"10.5", 0, false},
		{"", 0, false},
		{" 7", 0, false},
		{"7.", 0, false},
		{"-3", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRating(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type form struct {
	Email  string `validate:"required,email"`
	Rating string `validate:"rating"`
	Kind   string `validate:"oneof=movie book"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(form{Email: "a@b.c", Rating: "9.5", Kind: "book"}))

	err := Struct(form{Email: "a@b.c", Rating: "8.55", Kind: "movie"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	var ae *apperror.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Rating", ae.Field)
	assert.Contains(t, ae.Message, "1 to 10")

	err = Struct(form{Email: "", Rating: "5", Kind: "movie"})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Email is required", ae.Message)

	err = Struct(form{Email: "a@b.c", Rating: "5", Kind: "show"})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Kind must be one of: movie book", ae.Message)
}

package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type digestRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Period string `json:"period" validate:"required,oneof=daily weekly custom"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(digestRequest{Period: "monthly"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "user_id", failures[0].Field)
	require.Equal(t, "required", failures[0].Tag)
	require.Equal(t, "period", failures[1].Field)
	require.Equal(t, "oneof", failures[1].Tag)
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(digestRequest{
		UserID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Period: "weekly",
	})
	require.NoError(t, err)
}

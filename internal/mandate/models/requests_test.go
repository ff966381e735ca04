package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bureau/pkg/domain-errors"
)

func validInput() MandateInput {
	return MandateInput{
		"role":      "PRESIDENT",
		"startDate": "2024-01-01",
		"endDate":   "2024-12-31",
		"isActive":  true,
	}
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	de, ok := dErrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, dErrors.CodeValidation, de.Code)
	names := make([]string, 0, len(de.Fields))
	for _, f := range de.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidateMandate(t *testing.T) {
	t.Run("valid mandate is returned unchanged", func(t *testing.T) {
		got, err := ValidateMandate(validInput())
		require.NoError(t, err)
		assert.Equal(t, RolePresident, got.Role)
		assert.Equal(t, "2024-01-01", got.StartDate.String())
		assert.Equal(t, "2024-12-31", got.EndDate.String())
		assert.True(t, got.IsActive)
	})

	t.Run("isActive defaults to true", func(t *testing.T) {
		in := validInput()
		delete(in, "isActive")
		got, err := ValidateMandate(in)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	})

	t.Run("isActive false is kept", func(t *testing.T) {
		in := validInput()
		in["isActive"] = false
		got, err := ValidateMandate(in)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("single day mandate is valid", func(t *testing.T) {
		in := validInput()
		in["endDate"] = "2024-01-01"
		_, err := ValidateMandate(in)
		require.NoError(t, err)
	})

	t.Run("every role is accepted", func(t *testing.T) {
		for _, role := range Roles {
			in := validInput()
			in["role"] = string(role)
			_, err := ValidateMandate(in)
			assert.NoError(t, err, "role %s", role)
		}
	})

	t.Run("rfc3339 timestamps are accepted", func(t *testing.T) {
		in := validInput()
		in["startDate"] = "2024-01-01T00:00:00Z"
		got, err := ValidateMandate(in)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", got.StartDate.String())
	})

	cases := []struct {
		name   string
		mutate func(MandateInput)
		fields []string
	}{
		{"missing role", func(in MandateInput) { delete(in, "role") }, []string{"role"}},
		{"invalid role", func(in MandateInput) { in["role"] = "INVALID_ROLE" }, []string{"role"}},
		{"empty role", func(in MandateInput) { in["role"] = "" }, []string{"role"}},
		{"missing startDate", func(in MandateInput) { delete(in, "startDate") }, []string{"startDate"}},
		{"missing endDate", func(in MandateInput) { delete(in, "endDate") }, []string{"endDate"}},
		{"unparseable startDate", func(in MandateInput) { in["startDate"] = "invalid-date" }, []string{"startDate"}},
		{"numeric endDate", func(in MandateInput) { in["endDate"] = 20241231.0 }, []string{"endDate"}},
		{"end before start", func(in MandateInput) {
			in["startDate"] = "2024-12-31"
			in["endDate"] = "2024-01-01"
		}, []string{"endDate"}},
		{"non-boolean isActive", func(in MandateInput) { in["isActive"] = "yes" }, []string{"isActive"}},
		{"null isActive", func(in MandateInput) { in["isActive"] = nil }, []string{"isActive"}},
		{"unknown field", func(in MandateInput) { in["memberId"] = 7.0 }, []string{"memberId"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(in)
			_, err := ValidateMandate(in)
			require.Error(t, err)
			assert.ElementsMatch(t, tc.fields, fieldNames(t, err))
		})
	}

	t.Run("all field errors are collected", func(t *testing.T) {
		_, err := ValidateMandate(MandateInput{"isActive": "no"})
		require.Error(t, err)
		assert.ElementsMatch(t, []string{"role", "startDate", "endDate", "isActive"}, fieldNames(t, err))
	})
}

func TestValidateMandateUpdate(t *testing.T) {
	t.Run("empty patch is valid", func(t *testing.T) {
		patch, err := ValidateMandateUpdate(MandateInput{})
		require.NoError(t, err)
		assert.False(t, patch.TouchesDates())
		assert.Nil(t, patch.Role)
		assert.Nil(t, patch.IsActive)
	})

	t.Run("status only does not touch dates", func(t *testing.T) {
		patch, err := ValidateMandateUpdate(MandateInput{"isActive": false})
		require.NoError(t, err)
		assert.False(t, patch.TouchesDates())
		require.NotNil(t, patch.IsActive)
		assert.False(t, *patch.IsActive)
	})

	t.Run("end date alone touches dates", func(t *testing.T) {
		patch, err := ValidateMandateUpdate(MandateInput{"endDate": "2024-06-30"})
		require.NoError(t, err)
		assert.True(t, patch.TouchesDates())
		assert.Equal(t, "2024-06-30", patch.EndDate.String())
	})

	t.Run("invalid fields are reported together", func(t *testing.T) {
		_, err := ValidateMandateUpdate(MandateInput{
			"role":      "KING",
			"startDate": "2024-12-31",
			"endDate":   "2024-01-01",
			"isActive":  1.0,
		})
		require.Error(t, err)
		assert.ElementsMatch(t, []string{"role", "endDate", "isActive"}, fieldNames(t, err))
	})
}

func TestCheckInterval(t *testing.T) {
	assert.NoError(t, CheckInterval(MustParseDate("2024-01-01"), MustParseDate("2024-01-01")))
	err := CheckInterval(MustParseDate("2024-02-01"), MustParseDate("2024-01-01"))
	assert.Equal(t, []string{"endDate"}, fieldNames(t, err))
}

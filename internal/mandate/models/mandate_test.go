package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleMandateOverlaps(t *testing.T) {
	existing := &RoleMandate{
		StartDate: MustParseDate("2024-01-01"),
		EndDate:   MustParseDate("2024-12-31"),
	}

	cases := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"candidate nested inside", "2024-06-01", "2024-06-30", true},
		{"candidate contains existing", "2023-01-01", "2025-12-31", true},
		{"existing start inside candidate", "2023-06-01", "2024-01-01", true},
		{"existing end inside candidate", "2024-12-31", "2025-06-30", true},
		{"identical range", "2024-01-01", "2024-12-31", true},
		{"entirely before", "2023-01-01", "2023-12-31", false},
		{"entirely after", "2025-01-01", "2025-12-31", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := existing.Overlaps(MustParseDate(tc.start), MustParseDate(tc.end))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRoleMandateApply(t *testing.T) {
	m := &RoleMandate{
		Role:      RoleTreasurer,
		StartDate: MustParseDate("2024-01-01"),
		EndDate:   MustParseDate("2024-12-31"),
		IsActive:  true,
	}
	inactive := false
	end := MustParseDate("2024-06-30")
	m.Apply(&MandatePatch{EndDate: &end, IsActive: &inactive})

	assert.Equal(t, RoleTreasurer, m.Role)
	assert.Equal(t, "2024-01-01", m.StartDate.String())
	assert.Equal(t, "2024-06-30", m.EndDate.String())
	assert.False(t, m.IsActive)
}

func TestDateJSON(t *testing.T) {
	m := RoleMandate{ID: 5, MemberID: 7, Role: RoleSecretary, StartDate: NewDate(2024, 3, 1), EndDate: NewDate(2024, 3, 31)}
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "2024-03-01", body["startDate"])
	assert.Equal(t, "2024-03-31", body["endDate"])

	var decoded RoleMandate
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.StartDate.Equal(m.StartDate))
}

func TestMandatePageTotalPages(t *testing.T) {
	assert.Equal(t, 0, (&MandatePage{Total: 0, Limit: 10}).TotalPages())
	assert.Equal(t, 1, (&MandatePage{Total: 10, Limit: 10}).TotalPages())
	assert.Equal(t, 3, (&MandatePage{Total: 21, Limit: 10}).TotalPages())

	resp := (&MandatePage{Page: 1, Limit: 10}).ToResponse()
	assert.NotNil(t, resp.Mandates)
}

func TestDateUnmarshalJSON(t *testing.T) {
	var resp MandateResponse
	require.NoError(t, json.Unmarshal([]byte(`{"mandate":{"id":3,"startDate":"2024-02-29","endDate":null}}`), &resp))
	require.NotNil(t, resp.Mandate)
	assert.Equal(t, "2024-02-29", resp.Mandate.StartDate.String())
	assert.True(t, resp.Mandate.EndDate.IsZero())

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"2023-02-29"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20240101`), &d))
}

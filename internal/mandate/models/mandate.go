package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role is an organizational role a member can hold for a period of time.
type Role string

const (
	RolePresident                Role = "PRESIDENT"
	RoleVicePresidentCommissions Role = "VICE_PRESIDENT_COMMISSIONS"
	RoleSecretary                Role = "SECRETARY"
	RoleTreasurer                Role = "TREASURER"
	RoleMember                   Role = "MEMBER"
)

// Roles lists every assignable role in display order.
var Roles = []Role{
	RolePresident,
	RoleVicePresidentCommissions,
	RoleSecretary,
	RoleTreasurer,
	RoleMember,
}

// IsValid reports whether r is one of the enumerated roles.
func (r Role) IsValid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

const dateLayout = "2006-01-02"

// Date is a calendar day without time-of-day, always normalized to UTC midnight.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t.UTC()), nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Time() time.Time        { return d.t }
func (d Date) IsZero() bool           { return d.t.IsZero() }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) String() string         { return d.t.Format(dateLayout) }

// Within reports whether d lies in the closed interval [start, end].
func (d Date) Within(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RoleMandate assigns a member to a role for an inclusive date interval.
type RoleMandate struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"memberId"`
	Role      Role      `json:"role"`
	StartDate Date      `json:"startDate"`
	EndDate   Date      `json:"endDate"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Overlaps reports whether m's interval shares at least one day with [start, end].
func (m *RoleMandate) Overlaps(start, end Date) bool {
	return !m.StartDate.After(end) && !m.EndDate.Before(start)
}

// Apply merges a validated patch into m.
func (m *RoleMandate) Apply(p *MandatePatch) {
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.StartDate != nil {
		m.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		m.EndDate = *p.EndDate
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
}

// OverlapQuery selects active mandates of one member and role that intersect
// [StartDate, EndDate], optionally ignoring the mandate being updated.
type OverlapQuery struct {
	MemberID  int64
	Role      Role
	StartDate Date
	EndDate   Date
	ExcludeID int64
}

// ListQuery pages a member's mandates, newest start date first.
type ListQuery struct {
	MemberID int64
	Limit    int
	Offset   int
}

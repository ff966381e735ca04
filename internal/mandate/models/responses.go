package models

// MandateResponse wraps a single mandate.
type MandateResponse struct {
	Mandate *RoleMandate `json:"mandate"`
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// ListResponse is the body of the member mandate listing.
type ListResponse struct {
	Mandates   []*RoleMandate `json:"mandates"`
	Pagination Pagination     `json:"pagination"`
}

// MandatePage is a page of mandates plus the unpaged total.
type MandatePage struct {
	Mandates []*RoleMandate
	Total    int
	Page     int
	Limit    int
}

// TotalPages rounds up so a partial final page counts.
func (p *MandatePage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// ToResponse converts a page to its wire form.
func (p *MandatePage) ToResponse() ListResponse {
	mandates := p.Mandates
	if mandates == nil {
		mandates = []*RoleMandate{}
	}
	return ListResponse{
		Mandates: mandates,
		Pagination: Pagination{
			Total:      p.Total,
			Page:       p.Page,
			TotalPages: p.TotalPages(),
		},
	}
}

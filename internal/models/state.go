package models

// AppState is the transient state of one storefront page session.
// It is owned by a single catalog.Page and handed out only as copies.
type AppState struct {
	IsLoading       bool            `json:"is_loading"`
	CurrentCategory string          `json:"category"`
	Products        []ProductRecord `json:"products"`
	ErrorFlag       bool            `json:"error"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	StatusText      string          `json:"status,omitempty"`
}

// Clone returns a copy that does not share the Products backing array.
func (s AppState) Clone() AppState {
	out := s
	if s.Products != nil {
		out.Products = make([]ProductRecord, len(s.Products))
		copy(out.Products, s.Products)
	}
	return out
}

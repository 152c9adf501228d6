package accounts

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	Code      string `json:"code" validate:"required"`
	NameEn    string `json:"name_en" validate:"required"`
	NameAr    string `json:"name_ar"`
	Type      string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID  *int64 `json:"parent_id"`
	IsGroup   bool   `json:"is_group"`
	Subledger string `json:"subledger" validate:"omitempty,oneof=NONE AR AP"`
}

func (r createAccountRequest) toInput() CreateInput {
	return CreateInput{
		Code:      r.Code,
		NameEn:    r.NameEn,
		NameAr:    r.NameAr,
		Type:      AccountType(r.Type),
		ParentID:  r.ParentID,
		IsGroup:   r.IsGroup,
		Subledger: SubledgerType(r.Subledger),
	}
}

type accountResponse struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code"`
	NameEn     string          `json:"name_en"`
	NameAr     string          `json:"name_ar"`
	Type       AccountType     `json:"type"`
	ParentID   *int64          `json:"parent_id,omitempty"`
	IsGroup    bool            `json:"is_group"`
	Active     bool            `json:"active"`
	Subledger  SubledgerType   `json:"subledger"`
	NormalSide NormalSide      `json:"normal_side"`
	Balance    decimal.Decimal `json:"balance"`
}

type accountNodeResponse struct {
	accountResponse
	Children []accountNodeResponse `json:"children"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Code:       a.Code,
		NameEn:     a.NameEn,
		NameAr:     a.NameAr,
		Type:       a.Type,
		ParentID:   a.ParentID,
		IsGroup:    a.IsGroup,
		Active:     a.IsActive,
		Subledger:  a.Subledger,
		NormalSide: a.NormalSide(),
		Balance:    a.Balance,
	}
}

func toNodeResponses(nodes []*AccountNode) []accountNodeResponse {
	out := make([]accountNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, accountNodeResponse{
			accountResponse: toAccountResponse(n.Account),
			Children:        toNodeResponses(n.Children),
		})
	}
	return out
}

// treeFilterFromQuery parses ?type=&active=&search= into a TreeFilter.
func treeFilterFromQuery(r *http.Request) TreeFilter {
	var filter TreeFilter
	if v := r.URL.Query().Get("type"); v != "" {
		t := AccountType(v)
		if t.Valid() {
			filter.Type = &t
		}
	}
	if v := r.URL.Query().Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.Active = &active
		}
	}
	filter.Query = r.URL.Query().Get("search")
	return filter
}

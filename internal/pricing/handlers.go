package pricing

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/backoffice-api/internal/common"
)

// Handler exposes stateless pricing calculations.
type Handler struct {
	VATRate float64
}

type quoteItem struct {
	Description     string               `json:"description"`
	Quantity        common.LenientNumber `json:"quantity"`
	UnitPrice       common.LenientNumber `json:"unitPrice"`
	DiscountPercent common.LenientNumber `json:"discountPercent"`
}

type quoteRequest struct {
	Kind    string               `json:"kind"`
	VATRate common.LenientNumber `json:"vatRate"`
	Items   []quoteItem          `json:"items"`
}

type quoteLine struct {
	Description     string  `json:"description"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unitPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	PriceExclVAT    float64 `json:"priceExclVat"`
	VAT             float64 `json:"vat"`
	TotalIncl       float64 `json:"totalIncl"`
}

type quoteResponse struct {
	Kind          string      `json:"kind"`
	VATRate       float64     `json:"vatRate"`
	Convention    string      `json:"convention"`
	Items         []quoteLine `json:"items"`
	TotalExcl     float64     `json:"totalExcl"`
	Tax           float64     `json:"tax"`
	TotalIncl     float64     `json:"totalIncl"`
	TotalDiscount float64     `json:"totalDiscount"`
	AmountInWords string      `json:"amountInWords"`
}

// Quote handles POST /api/v1/pricing/quote. Missing or malformed quantities
// default to 1 and discounts to 0; nothing is persisted.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	convention, ok := ConventionFor(kind)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown document kind", map[string]string{"kind": req.Kind})
		return
	}
	if kind == "" {
		kind = "invoice"
	}
	rate := req.VATRate.FloatOr(h.VATRate)
	if rate < 0 || rate >= 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "vatRate must be in [0, 1)", nil)
		return
	}
	items := make([]LineItem, 0, len(req.Items))
	for i, it := range req.Items {
		item := LineItem{
			Description:     it.Description,
			Quantity:        it.Quantity.IntOr(1),
			UnitPrice:       it.UnitPrice.FloatOr(0),
			DiscountPercent: it.DiscountPercent.FloatOr(0),
		}
		if item.Quantity < 1 || item.UnitPrice < 0 || item.DiscountPercent < 0 || item.DiscountPercent > 100 {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "validation failed", map[string]string{
				"items[" + strconv.Itoa(i) + "]": "quantity >= 1, unitPrice >= 0, 0 <= discountPercent <= 100",
			})
			return
		}
		items = append(items, item)
	}

	engine := NewEngine(rate, convention)
	resp := quoteResponse{Kind: kind, VATRate: rate, Convention: convention.String(), Items: make([]quoteLine, 0, len(items))}
	for i, line := range engine.Lines(items) {
		line = RoundLine(line)
		resp.Items = append(resp.Items, quoteLine{
			Description:     items[i].Description,
			Quantity:        items[i].Quantity,
			UnitPrice:       items[i].UnitPrice,
			DiscountPercent: engine.normalise(items[i]).DiscountPercent,
			PriceExclVAT:    line.PriceExclVAT,
			VAT:             line.VAT,
			TotalIncl:       line.TotalIncl,
		})
	}
	raw := engine.Document(items)
	if err := CheckDocument(raw); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", "document totals exceed the supported amount range",
			map[string]float64{"max": MaxAmount})
		return
	}
	doc := RoundDocument(raw)
	resp.TotalExcl = doc.TotalExcl
	resp.Tax = doc.Tax
	resp.TotalIncl = doc.TotalIncl
	resp.TotalDiscount = doc.TotalDiscount
	resp.AmountInWords = AmountToWords(WholeUnits(raw.TotalIncl))
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// Words handles GET /api/v1/pricing/words?amount=N. Fractions are dropped.
func (h *Handler) Words(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || math.Abs(amount) >= MaxAmount {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be a number", nil)
		return
	}
	whole := WholeUnits(amount)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"amount": whole,
		"words":  AmountToWords(whole),
	}})
}

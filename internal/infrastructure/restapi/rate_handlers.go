package restapi

import (
	"net/http"
	"strconv"
	"strings"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// ConversionResult is the payload of the convert endpoint.
type ConversionResult struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`
	Value  float64 `json:"value"`
}

// RateHandler serves the rate store.
type RateHandler struct {
	rates  port.RateStore
	logger port.Logger
}

// NewRateHandler создает новый экземпляр RateHandler.
func NewRateHandler(r port.RateStore, l port.Logger) *RateHandler {
	return &RateHandler{rates: r, logger: l}
}

// GetRatesHandler returns the current rate tables.
func (h *RateHandler) GetRatesHandler(c *gin.Context) {
	snap := h.rates.Snapshot()
	message := "Rates retrieved successfully."
	if snap.LastFetched.IsZero() {
		message = "Rates were never fetched. Conversions use fallback prices."
	}
	respond(c, http.StatusOK, snap, message)
}

// RefreshRatesHandler fetches both rate sources and reports each one.
func (h *RateHandler) RefreshRatesHandler(c *gin.Context) {
	res := h.rates.FetchRates(c.Request.Context())

	var errs []entity.ServiceError
	for _, st := range []entity.SourceStatus{res.Crypto, res.Fiat} {
		if !st.OK {
			errs = append(errs, entity.ServiceError{Source: st.Source, Message: st.Error})
		}
	}

	switch {
	case !res.AnyOK():
		respond(c, http.StatusBadGateway, res, "Failed to refresh rates from any source.", errs...)
	case len(errs) > 0:
		respond(c, http.StatusOK, res, "Rates partially refreshed.", errs...)
	default:
		respond(c, http.StatusOK, res, "Rates refreshed.")
	}
}

// ConvertHandler converts ?amount= of ?from= into ?to=. Amount defaults to 1.
func (h *RateHandler) ConvertHandler(c *gin.Context) {
	from := strings.ToUpper(strings.TrimSpace(c.Query("from")))
	to := strings.ToUpper(strings.TrimSpace(c.Query("to")))
	if from == "" || to == "" {
		respond(c, http.StatusBadRequest, nil, "Query parameters 'from' and 'to' are required.",
			entity.ServiceError{Source: sourceRequest, Message: "missing currency code"})
		return
	}

	amount := 1.0
	if raw := c.Query("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respond(c, http.StatusBadRequest, nil, "Query parameter 'amount' must be a number.",
				entity.ServiceError{Source: sourceRequest, Message: err.Error()})
			return
		}
		amount = v
	}

	value, ok := h.rates.Convert(amount, from, to)
	result := ConversionResult{From: from, To: to, Amount: amount, Rate: h.rates.GetRate(from, to), Value: value}
	if !ok {
		respond(c, http.StatusUnprocessableEntity, result, "No rate is known for this currency pair.")
		return
	}
	respond(c, http.StatusOK, result, "Converted.")
}

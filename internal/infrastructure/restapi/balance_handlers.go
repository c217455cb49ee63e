package restapi

import (
	"errors"
	"net/http"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// BalanceHandler serves the wallet store.
type BalanceHandler struct {
	balances port.BalanceAggregator
	logger   port.Logger
}

// NewBalanceHandler создает новый экземпляр BalanceHandler.
func NewBalanceHandler(b port.BalanceAggregator, l port.Logger) *BalanceHandler {
	return &BalanceHandler{balances: b, logger: l}
}

// GetBalancesHandler возвращает последний снапшот кошельков, даже если последнее обновление упало.
func (h *BalanceHandler) GetBalancesHandler(c *gin.Context) {
	state := h.balances.State()

	var errs []entity.ServiceError
	message := "Balances retrieved successfully."
	switch {
	case state.LastError != "":
		errs = append(errs, entity.ServiceError{Source: sourceWallets, Message: state.LastError})
		message = "Balances served from the last snapshot. The latest refresh failed."
	case state.Snapshot.LastUpdated.IsZero():
		message = "No balance data yet. Trigger a refresh."
	}
	respond(c, http.StatusOK, state, message, errs...)
}

// RefreshBalancesHandler fetches wallets and rates, then returns the new state.
func (h *BalanceHandler) RefreshBalancesHandler(c *gin.Context) {
	err := h.balances.FetchWallets(c.Request.Context())
	state := h.balances.State()

	switch {
	case errors.Is(err, port.ErrUnauthorized):
		respond(c, http.StatusUnauthorized, state, "Session expired. Sign in again.",
			entity.ServiceError{Source: sourceWallets, Message: err.Error()})
	case err != nil:
		h.logger.Warn("Balance refresh failed", "error", err)
		respond(c, http.StatusBadGateway, state, "Refresh failed, serving the last snapshot.",
			entity.ServiceError{Source: sourceWallets, Message: err.Error()})
	default:
		respond(c, http.StatusOK, state, "Balances refreshed.")
	}
}

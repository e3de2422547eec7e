package handler

import (
	"errors"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/infra/blob"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

/*
把 service 錯誤轉成 http 回應

	*ValidationError              400, data.fields
	*VariantNotFoundError         409
	*InsufficientStockError       409
	*TransactionConflictError     409
	ErrForbidden                  403
	not found                     404
	*StoreUnavailableError/其他    503
*/
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	var (
		validation   *service.ValidationError
		notFound     *service.VariantNotFoundError
		insufficient *service.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		response.ErrorJSON(w, http.StatusBadRequest, service.UserMessage(err), dto.ValidationErrorData{Fields: validation.Fields})
	case errors.As(err, &notFound):
		response.ErrorJSON(w, http.StatusConflict, service.UserMessage(err), dto.StockErrorData{Item: notFound.Item})
	case errors.As(err, &insufficient):
		response.ErrorJSON(w, http.StatusConflict, service.UserMessage(err), dto.StockErrorData{
			Item:      insufficient.Item,
			Requested: insufficient.Requested,
			Available: insufficient.Available,
		})
	case errors.Is(err, service.ErrTransactionConflict), errors.Is(err, ledger.ErrTxnConflict):
		response.ErrorJSON(w, http.StatusConflict, service.UserMessage(&service.TransactionConflictError{Err: err}), nil)
	case errors.Is(err, service.ErrForbidden):
		response.ErrorJSON(w, http.StatusForbidden, service.UserMessage(err), nil)
	case errors.Is(err, ledger.ErrProductNotFound),
		errors.Is(err, ledger.ErrVariantNotFound),
		errors.Is(err, ledger.ErrOrderNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		response.ErrorJSON(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrVariantMismatch),
		errors.Is(err, cart.ErrEmptySession),
		errors.Is(err, blob.ErrEmptyFile):
		response.ErrorJSON(w, http.StatusBadRequest, err.Error(), nil)
	default:
		logger.Error().
			Err(err).
			Str("request_id", util.GetRequestIDFromContext(r.Context())).
			Str("url", r.URL.String()).
			Msg("request failed")
		response.ErrorJSON(w, http.StatusServiceUnavailable, service.UserMessage(err), nil)
	}
}

func badRequest(w http.ResponseWriter, message string) {
	response.ErrorJSON(w, http.StatusBadRequest, message, nil)
}

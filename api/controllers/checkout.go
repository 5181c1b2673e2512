package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/api/responses"
	"github.com/sabunku/storefront-backend/api/validators"
	checkoutsvc "github.com/sabunku/storefront-backend/internal/checkout"
	"github.com/sabunku/storefront-backend/internal/receipt"
	pkgcheckout "github.com/sabunku/storefront-backend/pkg/checkout"
	"github.com/sabunku/storefront-backend/pkg/enums"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
)

// checkoutRequest is shared by the web, WhatsApp and legacy save-order
// entry points. Items stay raw so malformed lines surface as intake errors
// rather than decode failures; legacy line prices are ignored.
type checkoutRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress *string         `json:"customer_address"`
	Items           json.RawMessage `json:"items"`
}

// legacySaveOrderRequest is the body the original cart page posts. Its
// client computed total is accepted and ignored.
type legacySaveOrderRequest struct {
	checkoutRequest
	TotalPrice *int64 `json:"total_price"`
}

type checkoutResponse struct {
	Success     bool                     `json:"success"`
	OrderID     uuid.UUID                `json:"order_id"`
	TotalPrice  int64                    `json:"total_price"`
	Items       []checkoutsvc.ResultItem `json:"items"`
	WhatsAppURL string                   `json:"whatsapp_url,omitempty"`
}

type saveOrderResponse struct {
	Success bool      `json:"success"`
	OrderID uuid.UUID `json:"order_id"`
}

// Checkout places a storefront order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := placeOrder(w, r, svc, enums.CheckoutChannelWeb, logg)
		if !ok {
			return
		}
		responses.WriteJSON(w, http.StatusOK, newCheckoutResponse(result))
	}
}

// CheckoutWhatsApp places an order and returns the wa.me link that carries
// the receipt to the shop's WhatsApp number.
func CheckoutWhatsApp(svc checkoutsvc.Service, whatsAppNumber string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := placeOrder(w, r, svc, enums.CheckoutChannelWhatsApp, logg)
		if !ok {
			return
		}
		resp := newCheckoutResponse(result)
		url, err := receipt.WhatsAppURL(whatsAppNumber, newReceipt(result))
		if err != nil {
			// the order is committed; the client can still show the receipt
			if logg != nil {
				logg.Error(logg.WithOrderID(r.Context(), result.OrderID.String()), "checkout.whatsapp_url_failed", err)
			}
		}
		resp.WhatsAppURL = url
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

// LegacySaveOrder serves the original /api/save-order contract. Client
// prices in the items are ignored.
func LegacySaveOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := placeOrder(w, r, svc, enums.CheckoutChannelLegacy, logg)
		if !ok {
			return
		}
		responses.WriteJSON(w, http.StatusOK, saveOrderResponse{Success: true, OrderID: result.OrderID})
	}
}

type decrementStockRequest struct {
	Items json.RawMessage `json:"items"`
}

// LegacyDecrementStock serves /api/decrement-stock. The whole batch is
// applied or nothing is.
func LegacyDecrementStock(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		var payload decrementStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := pkgcheckout.ParseLines(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DecrementStock(r.Context(), lines); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}

func placeOrder(w http.ResponseWriter, r *http.Request, svc checkoutsvc.Service, channel enums.CheckoutChannel, logg *logger.Logger) (*checkoutsvc.Result, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
		return nil, false
	}

	payload, err := decodeCheckoutRequest(r, channel)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}

	// an unparseable cart is reported by Validate after the customer checks
	lines, _ := pkgcheckout.ParseLines(payload.Items)
	intake, err := pkgcheckout.Validate(pkgcheckout.IntakeInput{
		CustomerName:    payload.CustomerName,
		CustomerPhone:   payload.CustomerPhone,
		CustomerAddress: payload.CustomerAddress,
		PhoneRequired:   channel.RequiresPhone(),
		Lines:           lines,
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}

	result, err := svc.Place(r.Context(), channel, *intake)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return result, true
}

func decodeCheckoutRequest(r *http.Request, channel enums.CheckoutChannel) (checkoutRequest, error) {
	if channel == enums.CheckoutChannelLegacy {
		var legacy legacySaveOrderRequest
		err := validators.DecodeJSONBody(r, &legacy)
		return legacy.checkoutRequest, err
	}
	var payload checkoutRequest
	err := validators.DecodeJSONBody(r, &payload)
	return payload, err
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	items := result.Items
	if items == nil {
		items = []checkoutsvc.ResultItem{}
	}
	return checkoutResponse{
		Success:    true,
		OrderID:    result.OrderID,
		TotalPrice: result.TotalPrice,
		Items:      items,
	}
}

func newReceipt(result *checkoutsvc.Result) receipt.Receipt {
	lines := make([]receipt.Line, 0, len(result.Items))
	for _, item := range result.Items {
		lines = append(lines, receipt.Line{
			Name:        item.Name,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return receipt.Receipt{
		OrderID:      result.OrderID.String(),
		CustomerName: result.CustomerName,
		Items:        lines,
		Total:        result.TotalPrice,
	}
}

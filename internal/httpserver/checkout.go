package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service/settlement"
)

type checkoutResponse struct {
	OrderID         string `json:"orderId"`
	GatewayIntentID string `json:"gatewayIntentId"`
	AmountMinor     int64  `json:"amountMinorUnits"`
	Currency        string `json:"currency"`
	KeyID           string `json:"keyId"`
}

type callbackResponse struct {
	Verified       bool               `json:"verified"`
	OrderID        string             `json:"orderId"`
	Status         domain.OrderStatus `json:"status"`
	PaymentID      string             `json:"paymentId"`
	AlreadySettled bool               `json:"alreadySettled"`
	ClearCart      bool               `json:"clearCart"`
}

// orderStatusResponse deliberately omits customer contact details.
type orderStatusResponse struct {
	ID          string             `json:"id"`
	Status      domain.OrderStatus `json:"status"`
	Items       []domain.LineItem  `json:"items"`
	TotalAmount int64              `json:"totalAmount"`
	Currency    string             `json:"currency"`
	PaymentID   *string            `json:"paymentId"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (h *handlers) checkout(c *gin.Context) {
	var req settlement.CheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.settlement.Checkout(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:         res.OrderID,
		GatewayIntentID: res.GatewayIntentID,
		AmountMinor:     res.AmountMinor,
		Currency:        res.Currency,
		KeyID:           h.keyID,
	})
}

// paymentCallback accepts the gateway callback as a JSON or form webhook
// body, or as redirect query parameters on GET.
func (h *handlers) paymentCallback(c *gin.Context) {
	var cb domain.PaymentCallback
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&cb)
	} else {
		err = c.ShouldBind(&cb)
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.settlement.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCallbackResponse(res))
}

func (h *handlers) finalizeOrder(c *gin.Context) {
	var req settlement.FinalizeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.settlement.Finalize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadySettled {
		status = http.StatusOK
	}
	c.JSON(status, toCallbackResponse(res))
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.settlement.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderStatusResponse{
		ID:          o.ID,
		Status:      o.Status,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		PaymentID:   o.PaymentID,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	})
}

func toCallbackResponse(res *settlement.CallbackResult) callbackResponse {
	return callbackResponse{
		Verified:       res.Verified,
		OrderID:        res.OrderID,
		Status:         res.Status,
		PaymentID:      res.PaymentID,
		AlreadySettled: res.AlreadySettled,
		ClearCart:      res.ClearCart,
	}
}

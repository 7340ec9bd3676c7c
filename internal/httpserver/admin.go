package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
	adminsvc "storefront/internal/service/admin"
)

const adminCookie = "token"

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminLoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int       `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type adminOrderList struct {
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Count   int            `json:"count"`
	Results []domain.Order `json:"results"`
}

func (h *handlers) adminLogin(c *gin.Context) {
	if h.admin == nil {
		writeError(c, adminsvc.ErrInvalidCredentials)
		return
	}
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, expiresAt, err := h.admin.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	ttl := h.admin.AccessTTLSeconds()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(adminCookie, token, ttl, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, adminLoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: ttl,
		ExpiresAt: expiresAt,
	})
}

func (h *handlers) adminLogout(c *gin.Context) {
	if err := h.admin.Logout(c.Request.Context(), c.GetString(adminTokenKey)); err != nil {
		writeError(c, err)
		return
	}
	c.SetCookie(adminCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminListOrders(c *gin.Context) {
	filter := orderrepo.ListFilter{Status: domain.OrderStatus(strings.ToLower(c.Query("status")))}
	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, domain.Invalid("limit", "must be an integer"))
		return
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		writeError(c, domain.Invalid("offset", "must be an integer"))
		return
	}
	orders, err := h.admin.ListOrders(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, adminOrderList{
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Count:   len(orders),
		Results: orders,
	})
}

const adminTokenKey = "admin_token"

// requireAdmin accepts a bearer token or the login cookie.
func (h *handlers) requireAdmin(c *gin.Context) {
	if h.admin == nil {
		writeError(c, adminsvc.ErrInvalidToken)
		c.Abort()
		return
	}
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(adminCookie)
	}
	subject, err := h.admin.Authenticate(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	c.Set(adminTokenKey, token)
	c.Set("admin_subject", subject)
	c.Next()
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func intQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

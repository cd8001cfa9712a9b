package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bazaar-chat/internal/services"
)

func sendRequest(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	conversationID := uuid.New().String()
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+conversationID+"/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(services.WithUserContext(req.Context(), uuid.New()))
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: conversationID}}

	// A nil service proves the rejection happens before any service call.
	NewMessageHandler(nil).Send(c)
	return w
}

func TestSendRejectsReservedMessageTypes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"forged system notice", `{"content":"Offer accepted!","type":"SYSTEM"}`},
		{"offer without engine", `{"type":"OFFER"}`},
		{"unknown type", `{"content":"hi","type":"IMAGE"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := sendRequest(t, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if !strings.Contains(w.Body.String(), "VALIDATION_ERROR") {
				t.Errorf("body = %s, want VALIDATION_ERROR code", w.Body.String())
			}
		})
	}
}

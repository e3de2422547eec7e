package response

import (
	"encoding/json"
	"net/http"
)

// Response 所有 API 共用的回應格式
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func WriteJSON(w http.ResponseWriter, status int, res Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

func SuccessJSON(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "success"
	}
	WriteJSON(w, http.StatusOK, Response{Code: http.StatusOK, Message: message, Data: data})
}

func CreatedJSON(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "created"
	}
	WriteJSON(w, http.StatusCreated, Response{Code: http.StatusCreated, Message: message, Data: data})
}

func ErrorJSON(w http.ResponseWriter, status int, message string, data any) {
	if message == "" {
		message = http.StatusText(status)
	}
	WriteJSON(w, status, Response{Code: status, Message: message, Data: data})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/service"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth

	roomService   *service.RoomService
	answerService *service.AnswerService
}

func NewHandler(roomService *service.RoomService, answerService *service.AnswerService) *Handler {
	return &Handler{
		roomService:   roomService,
		answerService: answerService,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// errorResponse maps the error taxonomy onto HTTP status codes. Every
// caller-visible failure carries its specific kind; nothing collapses
// into a generic success or bare 500.
func (h *Handler) errorResponse(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)

	var code int
	switch kind {
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindUnauthorized:
		code = http.StatusForbidden
	case errs.KindValidationFailed, errs.KindInvalidState, errs.KindResourceExhausted:
		code = http.StatusBadRequest
	case errs.KindConflict:
		code = http.StatusConflict
	case errs.KindUnavailable:
		code = http.StatusServiceUnavailable
	default:
		log.Errorf("internal error: %v", err)
		h.CreateResponse(w, Response{Message: "internal error", Code: http.StatusInternalServerError, Error: "internal"})
		return
	}

	h.CreateResponse(w, Response{
		Message: err.Error(),
		Code:    code,
		Error:   kind.String(),
	})
}

// userID extracts the stable user identity from the verified token.
// Identity issuance belongs to the external auth service; this service
// only trusts the signed sub claim.
func (h *Handler) userID(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", errs.Unauthorized("missing or invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errs.Unauthorized("token has no subject")
	}
	return sub, nil
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "trivia service is running",
		Code:    http.StatusOK,
	})
}

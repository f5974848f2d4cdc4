package handlers

import (
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Get("/health", h.HealthHandler)
		r.Get("/rooms", h.ListRoomsHandler)
		r.Get("/rooms/{roomID}", h.GetRoomHandler)
		r.Get("/rooms/{roomID}/rankings", h.RankingsHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/rooms", h.CreateRoomHandler)
			r.Post("/rooms/{roomID}/join", h.JoinRoomHandler)
			r.Post("/rooms/{roomID}/leave", h.LeaveRoomHandler)
			r.Post("/rooms/{roomID}/start", h.StartGameHandler)
			r.Post("/rooms/{roomID}/advance", h.AdvanceRoundHandler)
			r.Post("/rooms/{roomID}/answers", h.SubmitAnswerHandler)
			r.Get("/rooms/{roomID}/question", h.CurrentQuestionHandler)
		})
	})
}

// InitAuth wires token verification against the key shared with the
// external auth service. Tokens are issued there; this service only
// verifies.
func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}

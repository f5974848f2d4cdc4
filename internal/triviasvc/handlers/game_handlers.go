package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

type submitAnswerRequest struct {
	Answer    models.AnswerValue `json:"answer"`
	TimeTaken float64            `json:"time_taken"`
}

func (h *Handler) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, errs.ValidationFailed("malformed request body"))
		return
	}

	result, err := h.answerService.Submit(r.Context(), roomID, userID, req.Answer, req.TimeTaken)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "answer recorded", Code: http.StatusOK, Data: result})
}

func (h *Handler) AdvanceRoundHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	result, err := h.roomService.Advance(r.Context(), roomID, userID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	msg := "next round"
	if result.Finished {
		msg = "game finished"
	}
	h.CreateResponse(w, Response{Message: msg, Code: http.StatusOK, Data: result})
}

func (h *Handler) RankingsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	rankings, err := h.roomService.Rankings(r.Context(), roomID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "rankings", Code: http.StatusOK, Data: rankings})
}

func (h *Handler) CurrentQuestionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	question, err := h.roomService.GetCurrentQuestion(r.Context(), roomID, userID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "current question", Code: http.StatusOK, Data: question})
}

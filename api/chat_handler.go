package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/session"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
)

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned by the chat API
type ChatResponse struct {
	Reply      string             `json:"reply"`
	Failed     bool               `json:"failed"`
	ErrorKind  models.ErrorKind   `json:"error_kind,omitempty"`
	Transcript []models.ChatEntry `json:"transcript"`
}

const busyMessage = "A request is already in progress for this session"

// chatExchange asks the chatbot and appends the message and its reply to the transcript.
func (s *Server) chatExchange(r *http.Request, sess *session.Session, message string, logMessageBuilder *strings.Builder) models.ChatReply {
	reply := utils.GetChatbotResponse(r.Context(), s.chat, message)
	if reply.Failed() {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Chatbot call failed (%s): %v", reply.Err.Kind, reply.Err))
	} else {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Chatbot replied with %d chars", len(reply.Text)))
	}
	sess.AppendExchange(message, reply.Display())
	return reply
}

// ChatFormHandler handles POST /chat from the page and redirects back to it.
func (s *Server) ChatFormHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(s.logger, &logMessageBuilder, chimiddleware.GetReqID(r.Context()))
	utils.AddToLogMessage(&logMessageBuilder, "[Chat Form]")

	sess := GetSessionFromContext(r.Context())
	if !sess.TryBegin() {
		utils.AddToLogMessage(&logMessageBuilder, busyMessage)
		http.Error(w, busyMessage, http.StatusConflict)
		return
	}
	defer sess.End()

	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		utils.AddToLogMessage(&logMessageBuilder, "Empty message ignored")
	} else {
		s.chatExchange(r, sess, message, &logMessageBuilder)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ChatResetHandler handles POST /chat/reset
func (s *Server) ChatResetHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if !sess.TryBegin() {
		http.Error(w, busyMessage, http.StatusConflict)
		return
	}
	sess.ResetTranscript()
	sess.End()

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ChatAPIHandler handles POST /api/chat
func (s *Server) ChatAPIHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(s.logger, &logMessageBuilder, chimiddleware.GetReqID(r.Context()))
	utils.AddToLogMessage(&logMessageBuilder, "[Chat API]")

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		utils.RespondError(w, &logMessageBuilder, "message is required", http.StatusBadRequest)
		return
	}

	sess := GetSessionFromContext(r.Context())
	if !sess.TryBegin() {
		utils.RespondError(w, &logMessageBuilder, busyMessage, http.StatusConflict)
		return
	}
	defer sess.End()

	reply := s.chatExchange(r, sess, message, &logMessageBuilder)

	response := ChatResponse{
		Reply:      reply.Display(),
		Failed:     reply.Failed(),
		Transcript: sess.Transcript(),
	}
	if reply.Failed() {
		response.ErrorKind = reply.Err.Kind
	}
	utils.RespondJSON(w, http.StatusOK, response)
}

// TranscriptHandler handles GET /api/chat
func (s *Server) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"transcript": sess.Transcript(),
	})
}

package api

import (
	"encoding/json"
	"errors"
	"image"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ticketdesk/internal/files"
	"ticketdesk/internal/models"
	"ticketdesk/internal/scanner"
	"ticketdesk/internal/utils"
	"ticketdesk/internal/workflow"
)

const maxFrameBytes = 10 << 20

// Server serves the operator console. Each issuance and download runs its
// own workflow so the document can be returned in the response; the ticket
// list is shared.
type Server struct {
	deps       workflow.Deps
	redemption *workflow.Redemption
	log        logrus.FieldLogger
}

func NewServer(deps workflow.Deps) *Server {
	return &Server{
		deps:       deps,
		redemption: workflow.NewRedemption(deps),
		log:        deps.Log,
	}
}

// GetTimeHandler returns the current server time in RFC3339 format
func GetTimeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"time": time.Now().Format(time.RFC3339)})
}

// CreateTicketHandler issues a ticket from a JSON draft and answers with the
// receipt PDF as an attachment.
func (s *Server) CreateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var draft models.TicketRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&draft); err != nil {
		writeError(w, utils.ValidationError("cuerpo JSON inválido"))
		return
	}

	store := &files.MemoryStore{}
	deps := s.deps
	deps.Saver = store
	iss := workflow.NewIssuance(deps)
	if err := iss.SetDraft(draft); err != nil {
		writeError(w, err)
		return
	}
	if _, err := iss.Submit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	doc, _ := store.Last()
	writePDF(w, doc)
}

func (s *Server) ListTicketsHandler(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.redemption.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// TicketPDFHandler renders the templated ticket for one listed ticket.
func (s *Server) TicketPDFHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, utils.ValidationError("id de ticket inválido"))
		return
	}
	t, ok := s.redemption.Ticket(id)
	if !ok {
		if _, err := s.redemption.Load(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		t, ok = s.redemption.Ticket(id)
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "ticket no encontrado"})
		return
	}

	store := &files.MemoryStore{}
	deps := s.deps
	deps.Saver = store
	if _, err := workflow.NewRedemption(deps).Download(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	doc, _ := store.Last()
	writePDF(w, doc)
}

// ScanHandler decodes a QR code from an uploaded camera frame and redeems it.
func (s *Server) ScanHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes)
	file, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, utils.ValidationError("falta la imagen 'frame'"))
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		writeError(w, utils.ValidationError("la imagen no es válida"))
		return
	}
	payload, err := scanner.Decode(img, image.Point{})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "No se encontró un código QR en la imagen"})
		return
	}

	res, err := s.redemption.Redeem(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	var ce *utils.CustomError
	if !errors.As(err, &ce) {
		if errors.Is(err, workflow.ErrSubmitting) || errors.Is(err, workflow.ErrAlreadyScanning) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
	switch ce.Kind {
	case utils.KindValidation:
		return http.StatusBadRequest
	case utils.KindNetwork:
		return http.StatusBadGateway
	case utils.KindServer:
		if ce.Code >= 400 && ce.Code < 500 {
			return ce.Code
		}
		return http.StatusBadGateway
	case utils.KindEncoding:
		return http.StatusUnprocessableEntity
	case utils.KindMissingPayload:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), models.ErrorResponse{Error: utils.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePDF(w http.ResponseWriter, doc files.Document) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

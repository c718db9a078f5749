package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
)

// NoteController serves the admin notes attached to subcategories
type NoteController struct {
	responder
	notes *services.NoteService
}

// NewNoteController creates a note controller
func NewNoteController(notes *services.NoteService, log logger.Logger, production bool) *NoteController {
	return &NoteController{responder: newResponder(log, production), notes: notes}
}

// List handles GET /api/admin/subcategories/:id/notes
func (ctl *NoteController) List(c *gin.Context) {
	notes, err := ctl.notes.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusOK, notes)
}

// Create handles POST /api/admin/subcategories/:id/notes
func (ctl *NoteController) Create(c *gin.Context) {
	var req services.CreateNoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.badBody(c, err)
		return
	}

	note, err := ctl.notes.CreateNote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		ctl.respondError(c, err)
		return
	}
	ctl.ok(c, http.StatusCreated, note)
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/acksell/crm"
	"github.com/acksell/crm/customers"
	"github.com/acksell/crm/notes"
)

type handlers struct {
	customers CustomerService
	notes     NoteService
	logger    *slog.Logger
}

func (h *handlers) register(r gin.IRouter) {
	v1 := r.Group("/v1/customers")
	{
		v1.POST("", h.createCustomer)
		v1.GET("", h.listCustomers)
		v1.GET("/:customerId", h.getCustomer)
		v1.DELETE("/:customerId", h.deleteCustomer)

		v1.POST("/:customerId/notes", h.createNote)
		v1.GET("/:customerId/notes", h.listNotes)
		v1.GET("/:customerId/notes/:noteId", h.getNote)
		v1.PATCH("/:customerId/notes/:noteId", h.updateNote)
		v1.DELETE("/:customerId/notes/:noteId", h.deleteNote)
		v1.GET("/:customerId/notes/:noteId/attachment", h.attachmentURL)
	}
}

// noteResponse is a note plus, when an attachment was named, where to
// upload it.
type noteResponse struct {
	Note               crm.Note   `json:"note"`
	UploadURL          string     `json:"uploadUrl,omitempty"`
	UploadURLExpiresAt *time.Time `json:"uploadUrlExpiresAt,omitempty"`
}

func toNoteResponse(res notes.Result) noteResponse {
	out := noteResponse{Note: res.Note}
	if res.Upload != nil {
		out.UploadURL = res.Upload.URL
		out.UploadURLExpiresAt = &res.Upload.ExpiresAt
	}
	return out
}

// decode reads a JSON body into v. An empty body decodes as {}; anything
// after the first JSON value is rejected.
func decode(c *gin.Context, v any) error {
	data, err := c.GetRawData()
	if err != nil {
		return &bodyError{err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return &bodyError{err: err}
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return &bodyError{err: errTrailingData}
	}
	if err := binding.JSON.BindBody(first, v); err != nil {
		return &bodyError{err: err}
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

func (h *handlers) createCustomer(c *gin.Context) {
	var in customers.CreateInput
	if err := decode(c, &in); err != nil {
		writeError(c, h.logger, err)
		return
	}
	customer, err := h.customers.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *handlers) listCustomers(c *gin.Context) {
	list, err := h.customers.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []crm.Customer{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) getCustomer(c *gin.Context) {
	customer, err := h.customers.Get(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) deleteCustomer(c *gin.Context) {
	deleted, err := h.customers.Delete(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted", "notesDeleted": deleted})
}

func (h *handlers) createNote(c *gin.Context) {
	var in notes.CreateInput
	if err := decode(c, &in); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.notes.Create(c.Request.Context(), c.Param("customerId"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toNoteResponse(res))
}

func (h *handlers) listNotes(c *gin.Context) {
	list, err := h.notes.List(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []crm.Note{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) getNote(c *gin.Context) {
	n, err := h.notes.Get(c.Request.Context(), c.Param("customerId"), c.Param("noteId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handlers) updateNote(c *gin.Context) {
	var in notes.UpdateInput
	if err := decode(c, &in); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.notes.Update(c.Request.Context(), c.Param("customerId"), c.Param("noteId"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toNoteResponse(res))
}

func (h *handlers) deleteNote(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), c.Param("customerId"), c.Param("noteId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

func (h *handlers) attachmentURL(c *gin.Context) {
	u, err := h.notes.AttachmentDownloadURL(c.Request.Context(), c.Param("customerId"), c.Param("noteId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": u.URL, "expiresAt": u.ExpiresAt})
}

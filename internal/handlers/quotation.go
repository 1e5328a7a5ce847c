package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-quotations/auth"
	"github.com/diewo77/go-quotations/gate"
	"github.com/diewo77/go-quotations/httpx"
	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/logging"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/diewo77/go-quotations/internal/policy"
	"github.com/diewo77/go-quotations/internal/services"
	"github.com/sirupsen/logrus"
)

const module = "handlers"

var eventActions = map[services.Event]gate.Action{
	services.EventSend:   gate.ActionSend,
	services.EventAccept: gate.ActionAccept,
	services.EventReject: gate.ActionReject,
}

type QuotationHandler struct {
	svc  *services.QuotationService
	gate *gate.Gate[uint]
	log  *logrus.Logger
}

func NewQuotationHandler(svc *services.QuotationService, g *gate.Gate[uint], log *logrus.Logger) *QuotationHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &QuotationHandler{svc: svc, gate: g, log: log}
}

// Register mounts the quotation routes on mux, all behind auth.RequireAuth.
func (h *QuotationHandler) Register(mux *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"POST /quotations":                        h.Create,
		"GET /quotations":                         h.List,
		"GET /quotations/{id}":                    h.View,
		"PATCH /quotations/{id}":                  h.UpdateDetails,
		"DELETE /quotations/{id}":                 h.Delete,
		"POST /quotations/{id}/restore":           h.Restore,
		"PUT /quotations/{id}/totals":             h.SetTotals,
		"POST /quotations/{id}/items":             h.AddItem,
		"PUT /quotations/{id}/items/{item_id}":    h.UpdateItem,
		"DELETE /quotations/{id}/items/{item_id}": h.RemoveItem,
		"POST /quotations/{id}/{event}":           h.Transition,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, auth.RequireAuth(fn))
	}
}

func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, gate.ActionCreate, nil); err != nil {
		h.fail(w, "Create", err)
		return
	}
	var in services.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, "Create", err)
		return
	}
	in.CreatedBy = actor(r)
	q, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "Create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuotationHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r, gate.ActionList, nil); err != nil {
		h.fail(w, "List", err)
		return
	}
	query := r.URL.Query()
	f := services.ListFilter{
		Status: models.QuotationStatus(query.Get("status")),
		Search: query.Get("q"),
	}
	var err error
	if f.Page, err = intParam(query.Get("page"), "page"); err != nil {
		h.fail(w, "List", err)
		return
	}
	if f.PageSize, err = intParam(query.Get("page_size"), "page_size"); err != nil {
		h.fail(w, "List", err)
		return
	}
	if v := query.Get("expired"); v != "" {
		expired, perr := strconv.ParseBool(v)
		if perr != nil {
			h.fail(w, "List", apperr.Invalid("expired", "invalid_bool"))
			return
		}
		f.Expired = &expired
	}
	if mine, _ := strconv.ParseBool(query.Get("mine")); mine {
		f.CreatedBy = actor(r)
	}

	res, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, "List", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *QuotationHandler) View(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionView)
	if err != nil {
		h.fail(w, "View", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuotationHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionUpdate)
	if err != nil {
		h.fail(w, "UpdateDetails", err)
		return
	}
	var in services.DetailsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateDetails", err)
		return
	}
	updated, err := h.svc.UpdateDetails(r.Context(), q.ID, in)
	if err != nil {
		h.fail(w, "UpdateDetails", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *QuotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionDelete)
	if err != nil {
		h.fail(w, "Delete", err)
		return
	}
	if err := h.svc.Delete(r.Context(), q.ID, actor(r)); err != nil {
		h.fail(w, "Delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuotationHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, "Restore", err)
		return
	}
	q, err := h.svc.GetWithDeleted(r.Context(), id)
	if err != nil {
		h.fail(w, "Restore", err)
		return
	}
	if err := h.authorize(r, gate.ActionRestore, q); err != nil {
		h.fail(w, "Restore", err)
		return
	}
	restored, err := h.svc.Restore(r.Context(), id, actor(r))
	if err != nil {
		h.fail(w, "Restore", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restored)
}

func (h *QuotationHandler) SetTotals(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionUpdate)
	if err != nil {
		h.fail(w, "SetTotals", err)
		return
	}
	var in services.TotalsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, "SetTotals", err)
		return
	}
	updated, err := h.svc.SetManualTotals(r.Context(), q.ID, in)
	if err != nil {
		h.fail(w, "SetTotals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *QuotationHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionUpdate)
	if err != nil {
		h.fail(w, "AddItem", err)
		return
	}
	var in services.ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, "AddItem", err)
		return
	}
	updated, err := h.svc.AddItem(r.Context(), q.ID, in)
	if err != nil {
		h.fail(w, "AddItem", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, updated)
}

func (h *QuotationHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionUpdate)
	if err != nil {
		h.fail(w, "UpdateItem", err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		h.fail(w, "UpdateItem", err)
		return
	}
	var in services.ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateItem", err)
		return
	}
	updated, err := h.svc.UpdateItem(r.Context(), q.ID, itemID, in)
	if err != nil {
		h.fail(w, "UpdateItem", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *QuotationHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q, err := h.load(r, gate.ActionUpdate)
	if err != nil {
		h.fail(w, "RemoveItem", err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		h.fail(w, "RemoveItem", err)
		return
	}
	updated, err := h.svc.RemoveItem(r.Context(), q.ID, itemID)
	if err != nil {
		h.fail(w, "RemoveItem", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// Transition handles POST /quotations/{id}/send|accept|reject. The optional
// body carries acceptance notes or the rejection reason.
func (h *QuotationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	event, ok := services.ParseEvent(r.PathValue("event"))
	if !ok {
		h.fail(w, "Transition", apperr.ErrNotFound)
		return
	}
	q, err := h.load(r, eventActions[event])
	if err != nil {
		h.fail(w, "Transition", err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := httpx.DecodeOptionalJSON(r, &body); err != nil {
		h.fail(w, "Transition", err)
		return
	}
	updated, err := h.svc.Transition(r.Context(), q.ID, event, actor(r), body.Notes)
	if err != nil {
		h.fail(w, "Transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// load fetches the {id} quotation and checks action against it.
func (h *QuotationHandler) load(r *http.Request, action gate.Action) (*models.Quotation, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := h.authorize(r, action, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (h *QuotationHandler) authorize(r *http.Request, action gate.Action, q *models.Quotation) error {
	var resource any
	if q != nil {
		resource = q
	}
	return h.gate.Authorize(r.Context(), actor(r), action, policy.ResourceQuotation, resource)
}

func (h *QuotationHandler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusOf(err); status == http.StatusInternalServerError {
		logging.LogError(h.log, module, op, "request failed", nil, err)
	}
	httpx.WriteError(w, err)
}

func actor(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(name, "invalid_id")
	}
	return uint(id), nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name, "invalid_number")
	}
	return n, nil
}

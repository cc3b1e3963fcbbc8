package httppresentation

import (
	"net/http"

	appinventory "github.com/Zhima-Mochi/storefront-bot/internal/application/inventory"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	out, err := h.cfg.Inventory.Snapshot(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport returns the raw store document as a download.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.cfg.Inventory.Export(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="estoque.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.cfg.Inventory.ImportJSON(r.Context(), appinventory.ImportJSONCommand{
		ActorID: actorFrom(r.Context()),
		Data:    data,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type importLinesRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleImportLines(w http.ResponseWriter, r *http.Request) {
	var req importLinesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.cfg.Inventory.ImportLines(r.Context(), appinventory.ImportLinesCommand{
		ActorID: actorFrom(r.Context()),
		Text:    req.Text,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type addItemsRequest struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Price string `json:"price"`
	Lines string `json:"lines"`
}

func (h *Handler) handleAddItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.cfg.Inventory.AddItems(r.Context(), appinventory.AddItemsCommand{
		ActorID: actorFrom(r.Context()),
		Kind:    req.Kind,
		Label:   req.Label,
		Price:   req.Price,
		Lines:   req.Lines,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type setPriceRequest struct {
	Price string `json:"price"`
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	category := chi.URLParam(r, "category")
	err := h.cfg.Inventory.SetPrice(r.Context(), appinventory.SetPriceCommand{
		ActorID:  actorFrom(r.Context()),
		Category: category,
		Price:    req.Price,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category, "price": req.Price})
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := h.cfg.Inventory.DeleteCategory(r.Context(), appinventory.DeleteCategoryCommand{
		ActorID:  actorFrom(r.Context()),
		Category: chi.URLParam(r, "category"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.cfg.Inventory.Clear(r.Context(), appinventory.ClearCommand{ActorID: actorFrom(r.Context())}); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearchCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.cfg.Inventory.SearchCards(r.Context(), appinventory.SearchCommand{
		ActorID: actorFrom(r.Context()),
		Field:   q.Get("field"),
		Value:   q.Get("value"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

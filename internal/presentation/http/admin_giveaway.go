package httppresentation

import (
	"net/http"

	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	"github.com/go-chi/chi/v5"
)

type startGiveawayRequest struct {
	ChannelID      string  `json:"channel_id"`
	GuildID        string  `json:"guild_id"`
	Prize          string  `json:"prize"`
	Description    string  `json:"description"`
	Duration       *string `json:"duration"`
	Winners        int     `json:"winners"`
	Color          string  `json:"color"`
	Thumbnail      string  `json:"thumbnail"`
	Footer         string  `json:"footer"`
	RequiredRoleID string  `json:"required_role_id"`
	ForcedWinnerID string  `json:"forced_winner_id"`
}

// draft starts from the default draft. An omitted duration keeps the default
// countdown, an explicit one (even empty) is passed through for validation.
func (req startGiveawayRequest) draft(authorID string) domgiveaway.Draft {
	d := domgiveaway.NewDraft(req.ChannelID, authorID)
	d.GuildID = req.GuildID
	d.Prize = req.Prize
	d.Description = req.Description
	d.WinnerCount = req.Winners
	d.Color = req.Color
	d.Thumbnail = req.Thumbnail
	d.Footer = req.Footer
	d.RequiredRoleID = req.RequiredRoleID
	d.ForcedWinnerID = req.ForcedWinnerID
	if req.Duration != nil {
		d.Duration = *req.Duration
	}
	return d
}

func (h *Handler) handleStartGiveaway(w http.ResponseWriter, r *http.Request) {
	var req startGiveawayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	g, err := h.cfg.Giveaways.Start(r.Context(), req.draft(actorFrom(r.Context())))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type winnersResponse struct {
	MessageID string   `json:"message_id"`
	Winners   []string `json:"winners"`
}

func (h *Handler) handleFinalizeGiveaway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	winners, err := h.cfg.Giveaways.Finalize(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if winners == nil {
		winners = []string{}
	}
	writeJSON(w, http.StatusOK, winnersResponse{MessageID: id, Winners: winners})
}

func (h *Handler) handleRerollGiveaway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	winners, err := h.cfg.Giveaways.Reroll(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if winners == nil {
		winners = []string{}
	}
	writeJSON(w, http.StatusOK, winnersResponse{MessageID: id, Winners: winners})
}

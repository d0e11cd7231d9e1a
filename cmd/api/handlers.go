package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/forumhub/messenger/internal/data"
)

// handleHistory returns the conversation with the requested user, oldest
// first. Opening the history also marks that user's unread messages to the
// caller as read.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	peerID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil || peerID == 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	peer, err := s.users.GetUserByID(r.Context(), peerID)
	if err != nil {
		if err == data.ErrUserNotFound {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	msgs, err := s.msgs.GetHistory(r.Context(), claims.UserID, peerID)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	// Viewing the conversation counts as reading it. A failure here doesn't
	// fail the request; the messages stay unread for the next attempt.
	if _, err := s.msgs.MarkRead(r.Context(), claims.UserID, peerID); err != nil {
		log.Printf("mark read for %d from %d failed: %v", claims.UserID, peerID, err)
	}

	views := make([]*data.MessageView, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID == claims.UserID {
			views = append(views, m.View(claims.Username, claims.Avatar))
		} else {
			views = append(views, m.View(peer.Username, peer.Avatar))
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// handleUnreadCount returns the caller's total unread message count.
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := s.msgs.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "failed to count unread messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// handlePartners lists the users the caller has exchanged messages with,
// most recent conversation first.
func (s *Server) handlePartners(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var limit int64 = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	partners, err := s.msgs.GetRecentPartners(r.Context(), claims.UserID, limit)
	if err != nil {
		http.Error(w, "failed to load partners", http.StatusInternalServerError)
		return
	}

	// Each partner carries a live presence flag from the connection registry.
	views := make([]*partnerView, 0, len(partners))
	for _, p := range partners {
		views = append(views, &partnerView{
			ChatPartner: p,
			Online:      s.presence.Online(p.UserID),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// partnerView decorates a stored chat partner with its transient online
// state.
type partnerView struct {
	*data.ChatPartner
	Online bool `json:"online"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response failed: %v", err)
	}
}

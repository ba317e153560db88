package app

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"rentmesh/internal/adapters/transport"
	"rentmesh/internal/domain/item"
	"rentmesh/internal/protocol"
)

// The admin and state endpoints are the human's hands on an agent:
// owners add and release items, renters reserve and present codes, and
// every agent exposes its lists for idempotent inspection. They ride on
// the same HTTP server as the websocket fabric.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch protocol.KindOf(err) {
	case protocol.KindNotFound:
		status = http.StatusNotFound
	case protocol.KindInvalidCode:
		status = http.StatusForbidden
	case protocol.KindAlreadyExists, protocol.KindConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, protocol.Fail(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.Fail(err))
		return false
	}
	return true
}

func postOnly(handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
}

func getOnly(handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
}

type nameBody struct {
	Name string `json:"name"`
}

type ticketBody struct {
	TicketID uuid.UUID `json:"ticket_id"`
}

type ticketCodeBody struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Code     string    `json:"code"`
}

// RegisterRoutes attaches the owner's admin and state endpoints.
func (s *OwnerService) RegisterRoutes(srv *transport.Server) {
	srv.Route("/admin/items/add", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var it item.Item
		if !decodeBody(w, r, &it) {
			return
		}
		if err := s.AddItem(it); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/items/remove", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body nameBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.RemoveItem(body.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/list", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body nameBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.ListItem(r.Context(), body.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/unlist", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body nameBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.UnlistItem(r.Context(), body.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/release", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body ticketBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.Release(r.Context(), body.TicketID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	}))
}

type reserveBody struct {
	OwnerAddress string    `json:"owner_address"`
	Item         item.Item `json:"item"`
}

// RegisterRoutes attaches the renter's admin and state endpoints.
func (s *RenterService) RegisterRoutes(srv *transport.Server) {
	srv.Route("/admin/register", postOnly(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Register(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/browse", getOnly(func(w http.ResponseWriter, r *http.Request) {
		listings, err := s.Browse(r.Context(), r.URL.Query().Get("name"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.ListingList{Listings: listings})
	}))

	srv.Route("/admin/reserve", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body reserveBody
		if !decodeBody(w, r, &body) {
			return
		}
		ticketID, err := s.Reserve(r.Context(), body.OwnerAddress, body.Item)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.ReserveReply{TicketID: ticketID})
	}))

	srv.Route("/admin/confirm", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body ticketCodeBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.ConfirmHandover(r.Context(), body.TicketID, body.Code); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/admin/return", postOnly(func(w http.ResponseWriter, r *http.Request) {
		var body ticketBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := s.Return(r.Context(), body.TicketID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.Response{Status: true})
	}))

	srv.Route("/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	}))
}

// RegisterRoutes attaches the registry's state endpoint.
func (s *RegistryService) RegisterRoutes(srv *transport.Server) {
	srv.Route("/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	}))
}

// RegisterRoutes attaches the directory's state endpoint.
func (s *DirectoryService) RegisterRoutes(srv *transport.Server) {
	srv.Route("/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	}))
}

// RegisterRoutes attaches the scheduler's state endpoint.
func (s *PaymentService) RegisterRoutes(srv *transport.Server) {
	srv.Route("/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		obligations, err := s.Obligations(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"obligations": obligations})
	}))
}

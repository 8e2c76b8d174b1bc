package web

import (
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/shopinv/app/inventory"
)

// handlePage renders the main page with a full re-read of the items
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK)
}

// renderPage renders the page with current application state
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int) {
	data := TemplateData{
		State:       s.app.State(),
		AuthEnabled: s.passwordHash != "",
		Version:     shortVersion(s.version),
		CurrentYear: time.Now().Year(),
	}

	items, err := s.app.Items(r.Context())
	if err != nil {
		data.LoadError = true
		status = http.StatusInternalServerError
	}
	data.Items = items

	s.render(w, status, "page", "page", data)
}

// handleAdd creates a new item from the submitted form
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	_, err := s.app.Add(r.Context(), formFromRequest(r))
	s.respond(w, r, err)
}

// handleUpdate changes price and quantity of the selected item
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.app.Update(r.Context(), formFromRequest(r)))
}

// handleSelect populates the form with the chosen row
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	s.respond(w, r, s.app.Select(r.Context(), id))
}

// handleRemoveRequest asks the user to confirm removal of the selected item
func (s *Server) handleRemoveRequest(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.app.RequestRemove())
}

// handleRemoveConfirm removes the selected item if the user answered yes
func (s *Server) handleRemoveConfirm(w http.ResponseWriter, r *http.Request) {
	confirmed := r.FormValue("confirm") == "yes"
	s.respond(w, r, s.app.Remove(r.Context(), confirmed))
}

// handleClear empties the form fields and the selection
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.app.Clear()
	s.respond(w, r, nil)
}

// handleDismiss closes the notification dialog
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.app.DismissNotice()
	s.respond(w, r, nil)
}

// respond redirects back to the page on success, otherwise renders the page right away
// so the notice and the entered values are shown
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case inventory.IsValidation(err):
		log.Printf("[DEBUG] rejected input, %v", err)
		s.renderPage(w, r, http.StatusUnprocessableEntity)
	default:
		log.Printf("[ERROR] request %s %s failed, %v", r.Method, r.URL.Path, err)
		s.renderPage(w, r, http.StatusInternalServerError)
	}
}

func formFromRequest(r *http.Request) inventory.Form {
	return inventory.Form{
		Name:     r.FormValue("name"),
		Price:    r.FormValue("price"),
		Quantity: r.FormValue("quantity"),
	}
}

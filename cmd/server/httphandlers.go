package server

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/chirp/internal/chirp"
	appmw "example.com/chirp/internal/middleware"
	"example.com/chirp/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// timelineResponse is a timeline page plus what the page header shows.
type timelineResponse struct {
	chirp.Page
	Author    string `json:"author,omitempty"`
	Home      bool   `json:"home,omitempty"`
	Following *bool  `json:"following,omitempty"`
}

type tokenResponse struct {
	UserName string `json:"user_name"`
	Token    string `json:"token"`
}

type accountResponse struct {
	Author     models.AuthorDTO   `json:"author"`
	Following  []models.AuthorDTO `json:"following"`
	CheepCount int                `json:"cheep_count"`
}

// --- helpers ---

// reservedNames are the top-level static routes; an author with one of these
// names could never reach their own page.
var reservedNames = map[string]bool{
	"search": true, "account": true, "register": true, "login": true,
	"logout": true, "ping": true, "api": true, "cheep": true,
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return chirp.NormalizePage(page)
}

func authorPath(userName string) string {
	return "/" + url.PathEscape(userName)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, module string, err error) {
	switch {
	case errors.Is(err, chirp.ErrCheepTooLong), errors.Is(err, chirp.ErrInvalidAuthor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chirp.ErrAuthorNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chirp.ErrDuplicateUserName), errors.Is(err, chirp.ErrDuplicateEmail):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, chirp.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		logg.Error(module, "Request failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) setSession(w http.ResponseWriter, userName string) (string, error) {
	token, err := appmw.IssueToken(s.opts.Secret, userName, s.opts.TokenTTL)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     appmw.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: appmw.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// --- Timelines ---

// publicTimelineHandler serves GET /?page=n
func (s *Server) publicTimelineHandler(w http.ResponseWriter, r *http.Request) {
	page, err := s.chirp.PublicPage(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, "http/public", err)
		return
	}
	render.JSON(w, r, timelineResponse{Page: page})
}

// authorTimelineHandler serves GET /{author}?page=n. Authors looking at
// their own page get their home timeline.
func (s *Server) authorTimelineHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	viewer, loggedIn := appmw.UserFromContext(r.Context())

	resp := timelineResponse{Author: author}
	var err error
	if loggedIn && viewer == author {
		resp.Home = true
		resp.Page, err = s.chirp.FollowedPage(r.Context(), author, pageParam(r))
	} else {
		resp.Page, err = s.chirp.AuthorPage(r.Context(), author, pageParam(r))
	}
	if err != nil {
		writeError(w, "http/author", err)
		return
	}

	if loggedIn && viewer != author {
		following, err := s.chirp.IsFollowing(r.Context(), viewer, author)
		if err != nil {
			writeError(w, "http/author", err)
			return
		}
		resp.Following = &following
	}
	render.JSON(w, r, resp)
}

// createCheepHandler handles POST / and POST /{author} with form field "text".
// Redirects back to the page the form was on.
func (s *Server) createCheepHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _ := appmw.UserFromContext(r.Context())

	// strip markup but keep the text as typed, the policy escapes entities
	text := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(r.FormValue("text"))))
	if text == "" {
		http.Error(w, "cheep text is required", http.StatusBadRequest)
		return
	}

	if _, err := s.chirp.CreateCheep(r.Context(), viewer, text, s.chirp.Now()); err != nil {
		writeError(w, "http/cheep", err)
		return
	}
	logg.Info("http/cheep", "Cheep created by user_id="+viewer)

	target := "/"
	if author := chi.URLParam(r, "author"); author != "" {
		target = authorPath(author)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// deleteCheepHandler handles POST /cheep/delete for the viewer's own cheeps,
// identified by form fields "text" and "timestamp".
func (s *Server) deleteCheepHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _ := appmw.UserFromContext(r.Context())
	dto := models.CheepDTO{
		UserName:  viewer,
		Text:      r.FormValue("text"),
		TimeStamp: r.FormValue("timestamp"),
	}
	if _, err := s.chirp.DeleteCheep(r.Context(), dto); err != nil {
		writeError(w, "http/cheep", err)
		return
	}
	http.Redirect(w, r, authorPath(viewer), http.StatusSeeOther)
}

// --- Follow relations ---

func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, true)
}

func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, false)
}

func (s *Server) changeFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	viewer, _ := appmw.UserFromContext(r.Context())
	author := chi.URLParam(r, "author")

	if _, err := s.chirp.GetAuthor(r.Context(), author); err != nil {
		writeError(w, "http/follow", err)
		return
	}

	var err error
	if follow {
		err = s.chirp.Follow(r.Context(), viewer, author)
	} else {
		err = s.chirp.Unfollow(r.Context(), viewer, author)
	}
	if err != nil {
		writeError(w, "http/follow", err)
		return
	}
	http.Redirect(w, r, authorPath(author), http.StatusSeeOther)
}

func (s *Server) followingHandler(w http.ResponseWriter, r *http.Request) {
	authors, err := s.chirp.Following(r.Context(), chi.URLParam(r, "author"))
	if err != nil {
		writeError(w, "http/following", err)
		return
	}
	render.JSON(w, r, authors)
}

func (s *Server) followersHandler(w http.ResponseWriter, r *http.Request) {
	authors, err := s.chirp.Followers(r.Context(), chi.URLParam(r, "author"))
	if err != nil {
		writeError(w, "http/followers", err)
		return
	}
	render.JSON(w, r, authors)
}

// searchHandler serves GET /search?q=
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	authors, err := s.chirp.SearchAuthors(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "http/search", err)
		return
	}
	render.JSON(w, r, authors)
}

// --- Accounts ---

// registerHandler handles POST /register with form fields username,
// display_name, email and password; the new author is logged in.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	in := chirp.NewAuthor{
		UserName:    r.FormValue("username"),
		DisplayName: r.FormValue("display_name"),
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
	}
	if in.Password == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}
	if len(in.UserName) > 50 {
		http.Error(w, "username must be 1-50 characters", http.StatusBadRequest)
		return
	}
	if reservedNames[strings.ToLower(strings.TrimSpace(in.UserName))] {
		http.Error(w, "username is reserved", http.StatusBadRequest)
		return
	}

	a, err := s.chirp.CreateAuthor(r.Context(), in)
	if err != nil {
		writeError(w, "http/register", err)
		return
	}
	if _, err := s.setSession(w, a.UserName); err != nil {
		writeError(w, "http/register", err)
		return
	}
	logg.Info("http/register", "Author registered with user_id="+a.UserName)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// loginHandler handles POST /login with form fields login and password.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	a, err := s.chirp.Authenticate(r.Context(), r.FormValue("login"), r.FormValue("password"))
	if err != nil {
		writeError(w, "http/login", err)
		return
	}
	if _, err := s.setSession(w, a.UserName); err != nil {
		writeError(w, "http/login", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// tokenHandler is the JSON login for API clients.
// Expects JSON body: {"login": "...", "password": "..."}
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/token", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	a, err := s.chirp.Authenticate(r.Context(), body.Login, body.Password)
	if err != nil {
		writeError(w, "http/token", err)
		return
	}
	token, err := appmw.IssueToken(s.opts.Secret, a.UserName, s.opts.TokenTTL)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, tokenResponse{UserName: a.UserName, Token: token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	clearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// accountHandler serves GET /account for the logged-in author.
func (s *Server) accountHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _ := appmw.UserFromContext(r.Context())

	a, err := s.chirp.GetAuthor(r.Context(), viewer)
	if err != nil {
		writeError(w, "http/account", err)
		return
	}
	following, err := s.chirp.Following(r.Context(), viewer)
	if err != nil {
		writeError(w, "http/account", err)
		return
	}
	count, err := s.chirp.CheepCountFromUserName(r.Context(), viewer)
	if err != nil {
		writeError(w, "http/account", err)
		return
	}
	render.JSON(w, r, accountResponse{Author: a, Following: following, CheepCount: count})
}

// deleteAccountHandler forgets the logged-in author and logs them out.
func (s *Server) deleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _ := appmw.UserFromContext(r.Context())
	if err := s.chirp.DeleteAuthor(r.Context(), viewer); err != nil {
		writeError(w, "http/account", err)
		return
	}
	clearSession(w)
	logg.Info("http/account", "Account deleted for user_id="+viewer)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

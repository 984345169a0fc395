package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	jobdomain "github.com/jinford/profile-scraper/internal/module/job/domain"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

const (
	defaultPostsLimit        = 10
	defaultInteractionsLimit = 50
	maxRequestBody           = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000000"),
	})
}

func (s *Server) handleCreateScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	job, err := s.deps.Jobs.Submit(r.Context(), req.ProfileURL)
	if err != nil {
		if errors.Is(err, scraping.ErrInvalidProfileURL) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("Failed to submit job", "profileURL", req.ProfileURL, "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, newJobResponse(job))
}

func (s *Server) handleGetScrape(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := s.deps.Jobs.Status(r.Context(), id)
	if err != nil {
		s.writeJobError(w, id, err)
		return
	}

	WriteJSON(w, http.StatusOK, newJobResponse(job))
}

func (s *Server) handleGetScrapeResults(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Jobs.Results(r.Context(), id)
	if err != nil {
		s.writeJobError(w, id, err)
		return
	}

	WriteJSON(w, http.StatusOK, newScrapeResultsResponse(result))
}

func (s *Server) handleRecentLikes(w http.ResponseWriter, r *http.Request) {
	var req RecentLikesRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	opts := scraping.RecentLikesOptions{
		MaxPosts:             valueOr(req.MaxPosts, s.cfg.RecentLikes.MaxPosts),
		WindowHours:          valueOr(req.WindowHours, s.cfg.RecentLikes.WindowHours),
		MaxLikeUsersPerPost:  valueOr(req.MaxLikeUsersPerPost, s.cfg.RecentLikes.MaxUsersPerPost),
		CollectLikerProfiles: s.cfg.RecentLikes.Enrich,
		PersistLikers:        req.Persist,
	}
	if req.CollectLikerProfiles != nil {
		opts.CollectLikerProfiles = *req.CollectLikerProfiles
	}

	var store scraping.Store
	if s.deps.Stores != nil {
		st, err := s.deps.Stores(r.Context())
		if err != nil {
			s.log.Error("Failed to open store", "error", err)
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		store = st
	}

	result, err := s.deps.RecentLikes.ScrapeRecentLikes(r.Context(), req.ProfileURL, opts, store)
	if err != nil {
		if errors.Is(err, scraping.ErrInvalidProfileURL) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("Recent likes scrape failed", "profileURL", req.ProfileURL, "error", err)
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	profile, err := s.deps.Profiles.Profile(r.Context(), username)
	if err != nil {
		s.writeProfileError(w, username, err)
		return
	}

	WriteJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handleGetProfilePosts(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	page, ok := pageParams(r, defaultPostsLimit)
	if !ok {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid paging parameters: skip must be >= 0 and limit between 1 and %d", maxPageLimit))
		return
	}

	posts, err := s.deps.Profiles.ProfilePosts(r.Context(), username, page)
	if err != nil {
		s.writeProfileError(w, username, err)
		return
	}

	items := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		items = append(items, newPostResponse(p))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"username": username,
		"total":    len(items),
		"posts":    items,
	})
}

func (s *Server) handleGetProfileInteractions(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	page, ok := pageParams(r, defaultInteractionsLimit)
	if !ok {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid paging parameters: skip must be >= 0 and limit between 1 and %d", maxPageLimit))
		return
	}

	interactions, err := s.deps.Profiles.ProfileInteractions(r.Context(), username, page)
	if err != nil {
		s.writeProfileError(w, username, err)
		return
	}

	items := make([]InteractionResponse, 0, len(interactions))
	for _, i := range interactions {
		items = append(items, newInteractionResponse(i))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"username":     username,
		"total":        len(items),
		"interactions": items,
	})
}

// decodeRequest はJSONボディをデコードし検証します。失敗時はレスポンスを書き込み false を返します
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dest); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dest); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJobError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, jobdomain.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobdomain.ErrJobNotCompleted):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scraping.ErrProfileNotFound):
		WriteError(w, http.StatusNotFound, "profile not found")
	default:
		s.log.Error("Job request failed", "jobID", id, "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeProfileError(w http.ResponseWriter, username string, err error) {
	if errors.Is(err, scraping.ErrProfileNotFound) {
		WriteError(w, http.StatusNotFound, "profile not found")
		return
	}
	s.log.Error("Profile request failed", "username", username, "error", err)
	WriteError(w, http.StatusInternalServerError, err.Error())
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return uuid.Nil, false
	}
	return id, true
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

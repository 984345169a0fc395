package server

import "net/http"

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/scrape", s.handleCreateScrape)
	mux.HandleFunc("GET /api/scrape/{id}", s.handleGetScrape)
	mux.HandleFunc("GET /api/scrape/{id}/results", s.handleGetScrapeResults)

	mux.HandleFunc("POST /api/recent-likes", s.handleRecentLikes)

	mux.HandleFunc("GET /api/profiles/{username}", s.handleGetProfile)
	mux.HandleFunc("GET /api/profiles/{username}/posts", s.handleGetProfilePosts)
	mux.HandleFunc("GET /api/profiles/{username}/interactions", s.handleGetProfileInteractions)

	return mux
}

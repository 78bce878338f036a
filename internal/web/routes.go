package web

import (
	"github.com/kozaktomas/face-registry/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.registry, s.provider)
	healthHandler := handlers.NewHealthHandler(s.provider.Name(), s.version)

	s.router.Get("/health", healthHandler.Get)

	s.router.Post("/register", facesHandler.Register)
	s.router.Post("/recognize", facesHandler.Recognize)
	s.router.Get("/list", facesHandler.List)

	s.router.Get("/faces", facesHandler.Faces)
	s.router.Delete("/faces/{id}", facesHandler.Remove)
}

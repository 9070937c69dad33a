package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/services"
	"github.com/jainabhishek/AbhiScript/internal/storage"
)

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	transcriptions *services.TranscriptionService
}

func NewServer(cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fm, err := storage.NewFileManager(cfg.DataDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	provider := services.NewAssemblyAIProvider(cfg)
	speakers := services.NewSpeakerService(cfg, store)
	transcriptions := services.NewTranscriptionService(store, provider, services.NewFFProbe(), speakers)
	pdfSvc := services.NewPDFService()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, fm, store, transcriptions, speakers, pdfSvc)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg, transcriptions: transcriptions}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}

// Wait drains in-flight transcription runs; called on shutdown.
func (s *Server) Wait() {
	s.transcriptions.Wait()
}

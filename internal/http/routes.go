package http

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/jainabhishek/AbhiScript/internal/config"
	"github.com/jainabhishek/AbhiScript/internal/domain"
	"github.com/jainabhishek/AbhiScript/internal/services"
	"github.com/jainabhishek/AbhiScript/internal/storage"
)

type API struct {
	cfg            config.Config
	files          *storage.FileManager
	store          *storage.Store
	transcriptions *services.TranscriptionService
	speakers       *services.SpeakerService
	pdf            *services.PDFService
}

func NewAPI(cfg config.Config, fm *storage.FileManager, store *storage.Store, transcriptions *services.TranscriptionService, speakers *services.SpeakerService, pdf *services.PDFService) *API {
	return &API{cfg: cfg, files: fm, store: store, transcriptions: transcriptions, speakers: speakers, pdf: pdf}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/auth/login", api.handleAuthStub)
		apiGroup.POST("/auth/register", api.handleAuthStub)

		apiGroup.GET("/recordings", api.handleListRecordings)
		apiGroup.POST("/recordings/upload", api.handleUploadRecording)
		apiGroup.GET("/recordings/:id", api.handleGetRecording)
		apiGroup.DELETE("/recordings/:id", api.handleDeleteRecording)

		apiGroup.POST("/recordings/:id/transcribe", api.handleTranscribeRecording)
		apiGroup.GET("/recordings/:id/transcript", api.handleGetTranscript)
		apiGroup.DELETE("/recordings/:id/transcript", api.handleDeleteTranscript)
		apiGroup.GET("/transcripts", api.handleListTranscripts)

		apiGroup.POST("/recordings/:id/speakers/identify", api.handleIdentifySpeakers)
		apiGroup.GET("/recordings/:id/speakers", api.handleGetSpeakerMapping)

		apiGroup.POST("/recordings/:id/pdf", api.handleExportPDF)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"maxProcessingSeconds": int(a.cfg.MaxProcessingTime.Seconds()),
	})
}

func (a *API) handleAuthStub(c *gin.Context) {
	respondMessage(c, http.StatusNotImplemented, "authentication is not implemented")
}

func (a *API) handleListRecordings(c *gin.Context) {
	recordings, err := a.store.ListRecordings(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, recordings)
}

func (a *API) handleUploadRecording(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing media file")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		log.Printf("error opening upload: %v", err)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	saved, err := a.files.SaveUploadedMedia(upload, fileHeader.Filename)
	if err != nil {
		log.Printf("error saving uploaded media: %v", err)
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	recording, err := a.store.CreateRecording(c.Request.Context(), domain.Recording{
		Filename:         saved.Filename,
		OriginalFilename: fileHeader.Filename,
		SizeBytes:        saved.SizeBytes,
		StoragePath:      saved.Path,
		ContentHash:      saved.ContentHash,
		Status:           domain.StatusProcessing,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	log.Printf("recording %s created for upload %s", recording.ID, fileHeader.Filename)

	if err := a.transcriptions.StartTranscription(recording.ID, recording.StoragePath, services.DefaultTranscriptionOptions()); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"recording": recording})
}

func (a *API) handleGetRecording(c *gin.Context) {
	recording, err := a.store.GetRecording(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, recording)
}

func (a *API) handleDeleteRecording(c *gin.Context) {
	recordingID := c.Param("id")
	recording, err := a.store.GetRecording(c.Request.Context(), recordingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if err := a.store.DeleteRecording(c.Request.Context(), recordingID); err != nil {
		respondDomainError(c, err)
		return
	}

	if recording.StoragePath != "" {
		_ = os.Remove(recording.StoragePath)
	}
	_ = os.Remove(a.files.PDFPath(recordingID))

	c.Status(http.StatusNoContent)
}

func (a *API) handleTranscribeRecording(c *gin.Context) {
	recordingID := c.Param("id")
	recording, err := a.store.GetRecording(c.Request.Context(), recordingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	// A recording that already has a transcript is done; re-running would
	// only trip the uniqueness constraint in the background.
	if _, err := a.store.GetTranscriptByRecording(c.Request.Context(), recordingID); err == nil {
		respondMessage(c, http.StatusConflict, "recording "+recordingID+" already has a transcript")
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		respondDomainError(c, err)
		return
	}

	if err := a.transcriptions.StartTranscription(recording.ID, recording.StoragePath, services.DefaultTranscriptionOptions()); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"recordingId": recording.ID, "status": domain.StatusTranscribing})
}

func (a *API) handleGetTranscript(c *gin.Context) {
	view, err := a.transcriptions.GetTranscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) handleDeleteTranscript(c *gin.Context) {
	if err := a.transcriptions.DeleteTranscription(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleListTranscripts(c *gin.Context) {
	summaries, err := a.transcriptions.ListTranscriptions(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (a *API) handleIdentifySpeakers(c *gin.Context) {
	mapping, err := a.speakers.ReIdentifySpeakers(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakerNames": mapping})
}

func (a *API) handleGetSpeakerMapping(c *gin.Context) {
	mapping, err := a.transcriptions.GetSpeakerMapping(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakerNames": mapping})
}

func (a *API) handleExportPDF(c *gin.Context) {
	recordingID := c.Param("id")
	recording, err := a.store.GetRecording(c.Request.Context(), recordingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	view, err := a.transcriptions.GetTranscription(c.Request.Context(), recordingID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	pdfPath := a.files.PDFPath(recordingID)
	if err := a.pdf.GeneratePDF(recording, view, pdfPath); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(pdfPath, filepath.Base(pdfPath))
}

// respondDomainError maps tagged error kinds to HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondMessage(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrResolution):
		respondMessage(c, http.StatusBadGateway, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

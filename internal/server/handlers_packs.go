package server

import (
	"log"
	"net/http"
	"strings"

	"cards-chaos/internal/db"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListPacks(c *gin.Context) {
	enabledOnly := strings.EqualFold(c.Query("enabled"), "true")
	packs, err := s.catalog.ListPacks(c.Request.Context(), enabledOnly)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

func (s *Server) handleGetPack(c *gin.Context) {
	pack, err := s.catalog.GetPack(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

func (s *Server) handleCreatePack(c *gin.Context) {
	var req createPackRequest
	if !bindJSON(c, &req, packMessages, "Invalid pack") {
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	pack, err := s.catalog.CreatePack(c.Request.Context(), req.ID, normalizeText(req.Name), enabled)
	if err != nil {
		writeFailure(c, err)
		return
	}
	log.Printf("pack created pack_id=%s enabled=%t", pack.ID, pack.Enabled)
	c.JSON(http.StatusCreated, pack)
}

func (s *Server) handleTogglePack(c *gin.Context) {
	pack, err := s.catalog.TogglePack(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFailure(c, err)
		return
	}
	log.Printf("pack toggled pack_id=%s enabled=%t", pack.ID, pack.Enabled)
	c.JSON(http.StatusOK, pack)
}

func (s *Server) handleDeletePack(c *gin.Context) {
	id := c.Param("id")
	if err := s.catalog.DeletePack(c.Request.Context(), id); err != nil {
		writeFailure(c, err)
		return
	}
	log.Printf("pack deleted pack_id=%s", id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleImportPack(c *gin.Context) {
	id, err := validatePackID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "Pack id is invalid")
		return
	}
	var req importPackRequest
	if !bindJSON(c, &req, packMessages, "Invalid card import") {
		return
	}
	created, err := s.catalog.Import(c.Request.Context(), id, normalizeText(req.Name), req.BlackCards, req.WhiteCards)
	if err != nil {
		writeFailure(c, err)
		return
	}
	log.Printf("pack imported pack_id=%s created=%d", id, created)
	pack, err := s.catalog.GetPack(c.Request.Context(), id)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "pack": pack})
}

func (s *Server) handleListCards(c *gin.Context) {
	var query listCardsQuery
	if !bindQuery(c, &query, cardMessages, "Invalid card query") {
		return
	}
	cardType := ""
	if query.Type != "" {
		cardType, _ = db.NormalizeCardType(query.Type)
	}
	page, perPage := parsePagination(c, 50, 200)
	cards, total, err := s.catalog.ListCards(c.Request.Context(), query.PackID, cardType, page, perPage)
	if err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cards":      cards,
		"pagination": buildPaginationData(page, perPage, total),
	})
}

func (s *Server) handleCreateCard(c *gin.Context) {
	var req createCardRequest
	if !bindJSON(c, &req, cardMessages, "Invalid card") {
		return
	}
	cardType, _ := db.NormalizeCardType(req.Type)
	text, _ := validateCard(req.Text)
	card, created, err := s.catalog.AddCard(c.Request.Context(), req.PackID, cardType, text)
	if err != nil {
		writeFailure(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"card": card, "created": created})
}

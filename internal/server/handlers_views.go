package server

import (
	"log"
	"net/http"

	"cards-chaos/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func (s *Server) handleHome(c *gin.Context) {
	packs, err := s.catalog.ListPacks(c.Request.Context(), true)
	if err != nil {
		log.Printf("home packs failed error=%v", err)
	}
	options := make([]web.PackOption, 0, len(packs))
	for _, pack := range packs {
		options = append(options, web.PackOption{
			ID:    pack.ID,
			Name:  pack.Name,
			Black: pack.CardCount.Black,
			White: pack.CardCount.White,
		})
	}
	templ.Handler(web.Home(options)).ServeHTTP(c.Writer, c.Request)
}

// handleRoomQR renders a PNG QR code pointing players at the room's join link.
func (s *Server) handleRoomQR(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	if _, err := s.rooms.Get(c.Request.Context(), code); err != nil {
		writeFailure(c, err)
		return
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + c.Request.Host + "/?room=" + code
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("qr generation failed room=%s error=%v", code, err)
		writeError(c, http.StatusInternalServerError, "internal", "QR generation failed")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

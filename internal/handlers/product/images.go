package product

import (
	"net/http"
	"path/filepath"

	"ecommerce_back_end/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxImageSize = 5 << 20

// UploadImage : POST /api/products/:id/image (multipart, champ "image").
func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := handlers.ParamUUID(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier 'image' requis"})
		return
	}
	defer file.Close()

	if header.Size > maxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image trop volumineuse (5 Mo max)"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	p, err := h.catalog.UploadImage(c.Request.Context(), id, filepath.Base(header.Filename), file, header.Size, contentType)
	if err != nil {
		log.Warn().Err(err).Str("product_id", id.String()).Msg("❌ Upload image échoué")
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type PhotoHandler struct {
	photoService *services.PhotoService
}

func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// List returns a project's photos, each with its can_delete flag
// GET /api/projects/:id/photos
func (h *PhotoHandler) List(c *gin.Context) {
	photos, err := h.photoService.List(c.Request.Context(), middleware.GetProfile(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, photos)
}

// Upload stores one or more images sent as multipart "files".
// 201 when all succeed, 207 when some fail, 400 when none succeed.
// POST /api/projects/:id/photos
func (h *PhotoHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Expected a multipart form with files")
		return
	}

	headers := form.File["files"]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFileFrom(fh))
	}

	var description *string
	if values := form.Value["description"]; len(values) > 0 {
		description = &values[0]
	}

	result, err := h.photoService.Upload(c.Request.Context(), middleware.GetProfile(c), c.Param("id"), files, description)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch {
	case result.Failed == 0:
		c.JSON(http.StatusCreated, result)
	case result.Uploaded > 0:
		c.JSON(http.StatusMultiStatus, result)
	default:
		c.JSON(http.StatusBadRequest, result)
	}
}

func uploadFileFrom(fh *multipart.FileHeader) services.UploadFile {
	return services.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadSeekCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// DELETE /api/photos/:id
func (h *PhotoHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	viewer := middleware.GetProfile(c)
	if err := h.photoService.Delete(c.Request.Context(), viewer, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

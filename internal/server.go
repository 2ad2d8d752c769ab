package catregistry

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/MatviyVovchuk/cat-registry/internal/blobstore"
	"github.com/MatviyVovchuk/cat-registry/internal/models"
	"github.com/MatviyVovchuk/cat-registry/internal/myerrors"
	"github.com/MatviyVovchuk/cat-registry/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var Endpoints = struct {
	CatCreate     string
	CatGet        string
	CatGetAll     string
	CatUpdate     string
	CatDelete     string
	CatBulkDelete string
	CatValidate   string

	ImageUpload string
	ImageGet    string
}{
	CatCreate:     "/cats",
	CatGet:        "/cats/:id",
	CatGetAll:     "/cats",
	CatUpdate:     "/cats/:id",
	CatDelete:     "/cats/:id",
	CatBulkDelete: "/cats",
	CatValidate:   "/cats/validate",

	ImageUpload: "/images",
	ImageGet:    "/images/:ref",
}

type Server struct {
	router     *gin.Engine
	catService services.CatService
	blobs      blobstore.Store
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(catService services.CatService, blobs blobstore.Store, logger *zap.Logger) *Server {
	router := gin.Default()

	server := &Server{
		router:     router,
		catService: catService,
		blobs:      blobs,
		logger:     logger,
	}
	router.POST(Endpoints.CatCreate, server.handleAddCat)
	router.GET(Endpoints.CatGet, server.handleGetCat)
	router.GET(Endpoints.CatGetAll, server.handleGetAllCats)
	router.PUT(Endpoints.CatUpdate, server.handleUpdateCat)
	router.DELETE(Endpoints.CatDelete, server.handleDeleteCat)
	router.DELETE(Endpoints.CatBulkDelete, server.handleBulkDeleteCats)
	router.POST(Endpoints.CatValidate, server.handleValidateField)

	router.POST(Endpoints.ImageUpload, server.handleUploadImage)
	router.GET(Endpoints.ImageGet, server.handleGetImage)
	return server
}

func (s *Server) handleAddCat(ctx *gin.Context) {
	var input models.CatInput
	if err := ctx.BindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	newCat, err := s.catService.Create(ctx, input)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newCat)
}

func (s *Server) handleGetCat(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"message": "cat not found. Use number as id!",
		})
		return
	}

	cat, err := s.catService.GetById(ctx, id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cat)
}

func (s *Server) handleGetAllCats(ctx *gin.Context) {
	// bulk reads can narrow the result with ?id=1&id=2
	if rawIds, ok := ctx.GetQueryArray("id"); ok {
		ids := make([]int64, 0, len(rawIds))
		for _, raw := range rawIds {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"message": "invalid id: " + raw,
				})
				return
			}
			ids = append(ids, id)
		}
		cats, err := s.catService.GetByIds(ctx, ids)
		if err != nil {
			s.respondError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, cats)
		return
	}

	cats, err := s.catService.GetAll(ctx)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cats)
}

func (s *Server) handleUpdateCat(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"message": "cat not found. Use number as id!",
		})
		return
	}
	var update models.CatUpdate
	if err := ctx.BindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	updatedCat, err := s.catService.Update(ctx, id, update)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updatedCat)
}

func (s *Server) handleDeleteCat(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"message": "cat not found. Use number as id!",
		})
		return
	}

	if err := s.catService.DeleteById(ctx, id); err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, nil)
}

func (s *Server) handleBulkDeleteCats(ctx *gin.Context) {
	var request models.BulkDeleteRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	deleted, err := s.catService.DeleteByIds(ctx, request.Ids)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.BulkDeleteResult{Deleted: deleted})
}

func (s *Server) handleValidateField(ctx *gin.Context) {
	var request models.ValidateFieldRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": err.Error(),
		})
		return
	}

	result := s.catService.ValidateField(ctx, request.Field, request.Value)
	ctx.JSON(http.StatusOK, result)
}

func (s *Server) handleUploadImage(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": "missing image file: " + err.Error(),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"message": "failed to read uploaded file: " + err.Error(),
		})
		return
	}
	defer f.Close()

	ref, err := s.blobs.Upload(ctx, f, fileHeader.Filename)
	if err != nil {
		s.logger.Error("image upload failed", zap.String("filename", fileHeader.Filename), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to store the image. Please try again later.",
		})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"imageId": ref})
}

func (s *Server) handleGetImage(ctx *gin.Context) {
	ref := ctx.Param("ref")

	info, err := s.blobs.Stat(ctx, ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{
				"message": "image not found",
			})
			return
		}
		s.respondError(ctx, err)
		return
	}

	r, err := s.blobs.Open(ctx, ref)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension("." + info.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.DataFromReader(http.StatusOK, info.Size, contentType, r, nil)
}

// respondError maps the service error taxonomy onto HTTP statuses. Storage
// and blob failures are logged in full but the client only sees a generic
// retry message.
func (s *Server) respondError(ctx *gin.Context, err error) {
	var vErr *myerrors.ValidationError
	if errors.As(err, &vErr) {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "validation failed",
			"errors":  vErr.Fields,
		})
		return
	}
	var nfErr *myerrors.NotFoundError
	if errors.As(err, &nfErr) {
		ctx.JSON(http.StatusNotFound, gin.H{
			"message": nfErr.Error(),
		})
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, gin.H{
		"message": "failed to process the request. Please try again later.",
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

package catregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MatviyVovchuk/cat-registry/internal/blobstore"
	"github.com/MatviyVovchuk/cat-registry/internal/models"
	"github.com/MatviyVovchuk/cat-registry/internal/myerrors"
	"github.com/MatviyVovchuk/cat-registry/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type StubCatService struct {
	createFn     func(ctx context.Context, input models.CatInput) (models.Cat, error)
	updateFn     func(ctx context.Context, id int64, input models.CatUpdate) (models.Cat, error)
	deleteFn     func(ctx context.Context, id int64) error
	deleteBulkFn func(ctx context.Context, ids []int64) (int64, error)
	getByIdFn    func(ctx context.Context, id int64) (models.CatView, error)
	getByIdsFn   func(ctx context.Context, ids []int64) ([]models.CatView, error)
	getAllFn     func(ctx context.Context) ([]models.CatView, error)
}

func (s *StubCatService) Create(ctx context.Context, input models.CatInput) (models.Cat, error) {
	return s.createFn(ctx, input)
}

func (s *StubCatService) Update(ctx context.Context, id int64, input models.CatUpdate) (models.Cat, error) {
	return s.updateFn(ctx, id, input)
}

func (s *StubCatService) DeleteById(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}

func (s *StubCatService) DeleteByIds(ctx context.Context, ids []int64) (int64, error) {
	return s.deleteBulkFn(ctx, ids)
}

func (s *StubCatService) GetById(ctx context.Context, id int64) (models.CatView, error) {
	return s.getByIdFn(ctx, id)
}

func (s *StubCatService) GetByIds(ctx context.Context, ids []int64) ([]models.CatView, error) {
	return s.getByIdsFn(ctx, ids)
}

func (s *StubCatService) GetAll(ctx context.Context) ([]models.CatView, error) {
	return s.getAllFn(ctx)
}

func (s *StubCatService) ValidateField(ctx context.Context, field, value string) validation.FieldResult {
	switch field {
	case validation.FieldName:
		return validation.Name(value)
	case validation.FieldEmail:
		return validation.Email(value)
	default:
		return validation.FieldResult{Field: field, Reason: validation.ReasonUnknownField}
	}
}

func newTestServer(t *testing.T, service *StubCatService) (*Server, *blobstore.DiskStore) {
	t.Helper()
	blobs, err := blobstore.NewDiskStore(t.TempDir(), Endpoints.ImageUpload)
	require.NoError(t, err)
	return NewServer(service, blobs, zap.NewNop()), blobs
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)
	return response
}

func TestHandleAddCat(t *testing.T) {
	imageId := "ref-a"
	service := &StubCatService{
		createFn: func(ctx context.Context, input models.CatInput) (models.Cat, error) {
			return models.Cat{Id: 1, Name: input.Name, Email: input.Email, ImageId: &imageId, Created: 100}, nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodPost, Endpoints.CatCreate, models.CatInput{
		Name:    "Whiskers",
		Email:   "a@b.com",
		ImageId: "ref-a",
	})

	require.Equal(t, http.StatusCreated, response.Code)
	var cat models.Cat
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &cat))
	assert.Equal(t, int64(1), cat.Id)
	assert.Equal(t, "Whiskers", cat.Name)
}

func TestHandleAddCatValidationFailure(t *testing.T) {
	service := &StubCatService{
		createFn: func(ctx context.Context, input models.CatInput) (models.Cat, error) {
			return models.Cat{}, &myerrors.ValidationError{Fields: []validation.FieldResult{
				{Field: validation.FieldName, Reason: validation.ReasonTooShort, Message: "The name must be between 2 and 32 characters long."},
				{Field: validation.FieldImage, Reason: validation.ReasonRequired, Message: "The image is required."},
			}}
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodPost, Endpoints.CatCreate, models.CatInput{Name: "x"})

	require.Equal(t, http.StatusUnprocessableEntity, response.Code)
	var body struct {
		Message string                   `json:"message"`
		Errors  []validation.FieldResult `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Len(t, body.Errors, 2)
	assert.Equal(t, validation.FieldName, body.Errors[0].Field)
}

func TestHandleAddCatMalformedJSON(t *testing.T) {
	service := &StubCatService{}
	server, _ := newTestServer(t, service)

	request, _ := http.NewRequest(http.MethodPost, Endpoints.CatCreate, strings.NewReader("{not json"))
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestHandleGetCat(t *testing.T) {
	service := &StubCatService{
		getByIdFn: func(ctx context.Context, id int64) (models.CatView, error) {
			return models.CatView{
				Cat:      models.Cat{Id: id, Name: "Whiskers", Email: "a@b.com", Created: 100},
				ImageURL: "/images/ref-a",
				ImageAlt: "whiskers.png",
			}, nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodGet, "/cats/7", nil)

	require.Equal(t, http.StatusOK, response.Code)
	var view models.CatView
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &view))
	assert.Equal(t, int64(7), view.Id)
	assert.Equal(t, "/images/ref-a", view.ImageURL)
}

func TestHandleGetCatBadId(t *testing.T) {
	server, _ := newTestServer(t, &StubCatService{})

	response := doJSON(t, server, http.MethodGet, "/cats/abc", nil)
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestHandleGetCatNotFound(t *testing.T) {
	service := &StubCatService{
		getByIdFn: func(ctx context.Context, id int64) (models.CatView, error) {
			return models.CatView{}, &myerrors.NotFoundError{Id: id}
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodGet, "/cats/42", nil)
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestHandleGetAllCats(t *testing.T) {
	service := &StubCatService{
		getAllFn: func(ctx context.Context) ([]models.CatView, error) {
			return []models.CatView{
				{Cat: models.Cat{Id: 2, Name: "Newer", Email: "n@e.com", Created: 200}},
				{Cat: models.Cat{Id: 1, Name: "Older", Email: "o@e.com", Created: 100}},
			}, nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodGet, Endpoints.CatGetAll, nil)

	require.Equal(t, http.StatusOK, response.Code)
	var cats []models.CatView
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &cats))
	require.Len(t, cats, 2)
	assert.Equal(t, "Newer", cats[0].Name)
}

func TestHandleGetCatsByIds(t *testing.T) {
	var requested []int64
	service := &StubCatService{
		getByIdsFn: func(ctx context.Context, ids []int64) ([]models.CatView, error) {
			requested = ids
			return nil, nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodGet, "/cats?id=3&id=1", nil)

	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, []int64{3, 1}, requested)
}

func TestHandleUpdateCat(t *testing.T) {
	service := &StubCatService{
		updateFn: func(ctx context.Context, id int64, input models.CatUpdate) (models.Cat, error) {
			return models.Cat{Id: id, Name: input.Name, Email: input.Email, Created: 100}, nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodPut, "/cats/7", models.CatUpdate{
		Name:  "Tommy",
		Email: "t@e.com",
	})

	require.Equal(t, http.StatusOK, response.Code)
	var cat models.Cat
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &cat))
	assert.Equal(t, "Tommy", cat.Name)
}

func TestHandleDeleteCat(t *testing.T) {
	var deleted int64
	service := &StubCatService{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodDelete, "/cats/7", nil)
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, int64(7), deleted)
}

func TestHandleBulkDeleteCats(t *testing.T) {
	service := &StubCatService{
		deleteBulkFn: func(ctx context.Context, ids []int64) (int64, error) {
			return int64(len(ids)), nil
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodDelete, Endpoints.CatBulkDelete, models.BulkDeleteRequest{
		Ids: []int64{1, 2, 3},
	})

	require.Equal(t, http.StatusOK, response.Code)
	var result models.BulkDeleteResult
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &result))
	assert.Equal(t, int64(3), result.Deleted)
}

func TestHandleBulkDeleteCatsEmptyIds(t *testing.T) {
	server, _ := newTestServer(t, &StubCatService{})

	response := doJSON(t, server, http.MethodDelete, Endpoints.CatBulkDelete, models.BulkDeleteRequest{})
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestHandleValidateField(t *testing.T) {
	server, _ := newTestServer(t, &StubCatService{})

	response := doJSON(t, server, http.MethodPost, Endpoints.CatValidate, models.ValidateFieldRequest{
		Field: validation.FieldEmail,
		Value: "a@b",
	})

	require.Equal(t, http.StatusOK, response.Code)
	var result validation.FieldResult
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, validation.ReasonInvalidFormat, result.Reason)
}

func TestHandleUploadAndServeImage(t *testing.T) {
	server, _ := newTestServer(t, &StubCatService{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "whiskers.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	request, _ := http.NewRequest(http.MethodPost, Endpoints.ImageUpload, &buf)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	response := httptest.NewRecorder()
	server.Handler().ServeHTTP(response, request)

	require.Equal(t, http.StatusCreated, response.Code)
	var body struct {
		ImageId string `json:"imageId"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	require.NotEmpty(t, body.ImageId)

	getRequest, _ := http.NewRequest(http.MethodGet, "/images/"+body.ImageId, nil)
	getResponse := httptest.NewRecorder()
	server.Handler().ServeHTTP(getResponse, getRequest)

	require.Equal(t, http.StatusOK, getResponse.Code)
	assert.Equal(t, "image/png", getResponse.Header().Get("Content-Type"))
	assert.Equal(t, "fake png bytes", getResponse.Body.String())
}

func TestHandleGetImageNotFound(t *testing.T) {
	server, _ := newTestServer(t, &StubCatService{})

	response := doJSON(t, server, http.MethodGet, "/images/no-such-ref", nil)
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestStorageFailureIsGeneric(t *testing.T) {
	service := &StubCatService{
		getAllFn: func(ctx context.Context) ([]models.CatView, error) {
			return nil, &myerrors.StorageError{Op: "select", Err: assert.AnError}
		},
	}
	server, _ := newTestServer(t, service)

	response := doJSON(t, server, http.MethodGet, Endpoints.CatGetAll, nil)

	require.Equal(t, http.StatusInternalServerError, response.Code)
	// internals stay out of the client-facing message
	assert.NotContains(t, response.Body.String(), assert.AnError.Error())
}

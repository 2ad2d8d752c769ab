package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/MatviyVovchuk/cat-registry/internal/blobstore"
	"github.com/MatviyVovchuk/cat-registry/internal/models"
	"github.com/MatviyVovchuk/cat-registry/internal/myerrors"
	"github.com/MatviyVovchuk/cat-registry/internal/repositories"
	"github.com/MatviyVovchuk/cat-registry/internal/validation"
	"go.uber.org/zap"
)

type CatService interface {
	Create(ctx context.Context, input models.CatInput) (models.Cat, error)
	Update(ctx context.Context, id int64, input models.CatUpdate) (models.Cat, error)
	DeleteById(ctx context.Context, id int64) error
	DeleteByIds(ctx context.Context, ids []int64) (int64, error)
	GetById(ctx context.Context, id int64) (models.CatView, error)
	GetByIds(ctx context.Context, ids []int64) ([]models.CatView, error)
	GetAll(ctx context.Context) ([]models.CatView, error)
	ValidateField(ctx context.Context, field, value string) validation.FieldResult
}

// DefaultCatService ties validation, the blob lifecycle and the row store
// together. It is the only component allowed to move a blob between the
// pending and committed states.
type DefaultCatService struct {
	catRepo repositories.CatRepository
	blobs   blobstore.Store
	clock   Clock
	logger  *zap.Logger
}

func NewDefaultCatService(catRepo repositories.CatRepository, blobs blobstore.Store, clock Clock, logger *zap.Logger) *DefaultCatService {
	return &DefaultCatService{
		catRepo: catRepo,
		blobs:   blobs,
		clock:   clock,
		logger:  logger,
	}
}

// Create validates the submission, commits the pending image blob and
// inserts the record, strictly in that order. If the insert fails after the
// blob was committed the blob stays behind as an orphan; that window is
// accepted and logged with enough detail for manual cleanup.
func (d *DefaultCatService) Create(ctx context.Context, input models.CatInput) (models.Cat, error) {
	meta, err := d.imageMeta(ctx, input.ImageId)
	if err != nil {
		return models.Cat{}, err
	}

	result := validation.Submission(input.Name, input.Email, meta)
	if !result.OK() {
		return models.Cat{}, &myerrors.ValidationError{Fields: result.Failed()}
	}

	if err := d.blobs.MarkCommitted(ctx, input.ImageId); err != nil {
		return models.Cat{}, &myerrors.BlobError{Ref: input.ImageId, Op: "commit", Err: err}
	}

	imageId := input.ImageId
	newCat, err := d.catRepo.Add(ctx, models.Cat{
		Name:    input.Name,
		Email:   input.Email,
		ImageId: &imageId,
		Created: d.clock.Now().Unix(),
	})
	if err != nil {
		d.logger.Error("cat insert failed after image commit, blob left committed",
			zap.String("imageId", input.ImageId),
			zap.String("name", input.Name),
			zap.String("email", input.Email),
			zap.Error(err))
		return models.Cat{}, &myerrors.StorageError{Op: "insert", Err: err}
	}
	return newCat, nil
}

// Update edits name and email and optionally replaces the image. The old
// blob is only removed after the new row state is written, so there is never
// a window where the record points at nothing.
func (d *DefaultCatService) Update(ctx context.Context, id int64, input models.CatUpdate) (models.Cat, error) {
	var meta *validation.ImageMeta
	imageSupplied := input.ImageId != ""
	if imageSupplied {
		var err error
		meta, err = d.imageMeta(ctx, input.ImageId)
		if err != nil {
			return models.Cat{}, err
		}
	}

	result := validation.UpdateSubmission(input.Name, input.Email, meta, imageSupplied)
	if !result.OK() {
		return models.Cat{}, &myerrors.ValidationError{Fields: result.Failed()}
	}

	current, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return models.Cat{}, mapRepoError(id, err, "select")
	}
	oldRef := ""
	if current.ImageId != nil {
		oldRef = *current.ImageId
	}

	fields := models.CatFields{Name: &input.Name, Email: &input.Email}
	replacing := imageSupplied && input.ImageId != oldRef
	if replacing {
		if err := d.blobs.MarkCommitted(ctx, input.ImageId); err != nil {
			return models.Cat{}, &myerrors.BlobError{Ref: input.ImageId, Op: "commit", Err: err}
		}
		fields.ImageId = &input.ImageId
	}

	if _, err := d.catRepo.Update(ctx, id, fields); err != nil {
		if replacing {
			d.logger.Error("cat update failed after committing replacement image, blob left committed",
				zap.Int64("id", id),
				zap.String("imageId", input.ImageId),
				zap.Error(err))
		}
		return models.Cat{}, &myerrors.StorageError{Op: "update", Err: err}
	}

	if replacing && oldRef != "" {
		if err := d.removeBlob(ctx, oldRef); err != nil {
			d.logger.Error("failed to delete replaced image",
				zap.Int64("id", id),
				zap.String("imageId", oldRef),
				zap.Error(err))
			return models.Cat{}, err
		}
	}

	updatedCat, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return models.Cat{}, mapRepoError(id, err, "select")
	}
	return updatedCat, nil
}

// DeleteById removes the record first and only then its blob. If the row
// delete fails the blob is left alone, so a failed delete never loses the
// image.
func (d *DefaultCatService) DeleteById(ctx context.Context, id int64) error {
	current, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return mapRepoError(id, err, "select")
	}

	affected, err := d.catRepo.DeleteById(ctx, id)
	if err != nil {
		return &myerrors.StorageError{Op: "delete", Err: err}
	}
	if affected == 0 {
		// raced with another delete; the winner cleans up the blob
		return &myerrors.NotFoundError{Id: id}
	}

	if current.ImageId != nil {
		if err := d.removeBlob(ctx, *current.ImageId); err != nil {
			d.logger.Error("failed to delete cat image",
				zap.Int64("id", id),
				zap.String("imageId", *current.ImageId),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// DeleteByIds deletes all matching rows in one statement. When the statement
// fails no blob is touched. Blob cleanup afterwards is best effort: one
// failing blob does not stop the others, and all failures are reported once.
func (d *DefaultCatService) DeleteByIds(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	cats, err := d.catRepo.GetByIds(ctx, ids)
	if err != nil {
		return 0, &myerrors.StorageError{Op: "select", Err: err}
	}
	var refs []string
	for _, cat := range cats {
		if cat.ImageId != nil {
			refs = append(refs, *cat.ImageId)
		}
	}

	affected, err := d.catRepo.DeleteByIds(ctx, ids)
	if err != nil {
		return 0, &myerrors.StorageError{Op: "bulk delete", Err: err}
	}

	var cleanupErrs []error
	for _, ref := range refs {
		if err := d.removeBlob(ctx, ref); err != nil {
			d.logger.Error("bulk delete: image cleanup failed",
				zap.String("imageId", ref),
				zap.Error(err))
			cleanupErrs = append(cleanupErrs, err)
		}
	}
	if len(cleanupErrs) > 0 {
		return affected, fmt.Errorf("bulk image cleanup: %w", errors.Join(cleanupErrs...))
	}
	return affected, nil
}

func (d *DefaultCatService) GetById(ctx context.Context, id int64) (models.CatView, error) {
	cat, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return models.CatView{}, mapRepoError(id, err, "select")
	}
	return d.view(ctx, cat), nil
}

func (d *DefaultCatService) GetByIds(ctx context.Context, ids []int64) ([]models.CatView, error) {
	cats, err := d.catRepo.GetByIds(ctx, ids)
	if err != nil {
		return nil, &myerrors.StorageError{Op: "select", Err: err}
	}
	return d.views(ctx, cats), nil
}

func (d *DefaultCatService) GetAll(ctx context.Context) ([]models.CatView, error) {
	cats, err := d.catRepo.GetAll(ctx)
	if err != nil {
		return nil, &myerrors.StorageError{Op: "select", Err: err}
	}
	return d.views(ctx, cats), nil
}

// ValidateField runs a single field check so a client can validate while the
// user is still typing. For the image field the value is the pending blob
// reference.
func (d *DefaultCatService) ValidateField(ctx context.Context, field, value string) validation.FieldResult {
	switch field {
	case validation.FieldName:
		return validation.Name(value)
	case validation.FieldEmail:
		return validation.Email(value)
	case validation.FieldImage:
		meta, err := d.imageMeta(ctx, value)
		if err != nil {
			meta = nil
		}
		return validation.Image(meta)
	default:
		return validation.FieldResult{
			Field:   field,
			Reason:  validation.ReasonUnknownField,
			Message: fmt.Sprintf("Unknown field %q.", field),
		}
	}
}

// imageMeta resolves a blob reference into validation metadata. An empty or
// dangling reference yields nil, which the validation rules treat as a
// missing image.
func (d *DefaultCatService) imageMeta(ctx context.Context, ref string) (*validation.ImageMeta, error) {
	if ref == "" {
		return nil, nil
	}
	info, err := d.blobs.Stat(ctx, ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil
		}
		return nil, &myerrors.BlobError{Ref: ref, Op: "stat", Err: err}
	}
	return &validation.ImageMeta{Filename: info.Filename, Size: info.Size}, nil
}

// removeBlob orphans a no-longer-referenced blob and deletes it. Callers
// must have already detached the reference from any row.
func (d *DefaultCatService) removeBlob(ctx context.Context, ref string) error {
	if err := d.blobs.MarkOrphan(ctx, ref); err != nil {
		return &myerrors.BlobError{Ref: ref, Op: "orphan", Err: err}
	}
	if err := d.blobs.Delete(ctx, ref); err != nil {
		return &myerrors.BlobError{Ref: ref, Op: "delete", Err: err}
	}
	return nil
}

func (d *DefaultCatService) view(ctx context.Context, cat models.Cat) models.CatView {
	v := models.CatView{Cat: cat}
	if cat.ImageId == nil {
		return v
	}
	url, ok := d.blobs.URLFor(*cat.ImageId)
	if !ok {
		return v
	}
	v.ImageURL = url
	if info, err := d.blobs.Stat(ctx, *cat.ImageId); err == nil {
		v.ImageAlt = info.Filename
	}
	return v
}

func (d *DefaultCatService) views(ctx context.Context, cats []models.Cat) []models.CatView {
	views := make([]models.CatView, 0, len(cats))
	for _, cat := range cats {
		views = append(views, d.view(ctx, cat))
	}
	return views
}

func mapRepoError(id int64, err error, op string) error {
	if errors.Is(err, repositories.ErrCatNotFound) {
		return &myerrors.NotFoundError{Id: id}
	}
	return &myerrors.StorageError{Op: op, Err: err}
}

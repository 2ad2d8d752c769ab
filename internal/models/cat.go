package models

type Cat struct {
	Id      int64   `json:"id" db:"id"`
	Name    string  `json:"name" db:"cat_name"`
	Email   string  `json:"email" db:"user_email"`
	ImageId *string `json:"imageId" db:"cats_image_id"`
	Created int64   `json:"created" db:"created"`
}

// CatInput is a create submission. The image must reference a blob that was
// uploaded beforehand and is still pending.
type CatInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	ImageId string `json:"imageId"`
}

// CatUpdate is an edit submission. An empty ImageId keeps the current image.
type CatUpdate struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	ImageId string `json:"imageId"`
}

// CatFields is the partial set of columns an update writes.
// Nil fields are left untouched.
type CatFields struct {
	Name    *string
	Email   *string
	ImageId *string
}

// CatView is a Cat plus the resolved image descriptor for display.
type CatView struct {
	Cat
	ImageURL string `json:"imageUrl,omitempty"`
	ImageAlt string `json:"imageAlt,omitempty"`
}

type BulkDeleteRequest struct {
	Ids []int64 `json:"ids" binding:"required,min=1"`
}

type BulkDeleteResult struct {
	Deleted int64 `json:"deleted"`
}

type ValidateFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

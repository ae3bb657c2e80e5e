package course

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

// Levels
const (
	LevelUndergraduate = "Lisans"
	LevelMasters       = "Yüksek Lisans"
	LevelDoctorate     = "Doktora"
)

type Course struct {
	ID           int       `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Level        string    `json:"level,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	Credits      int       `json:"credits,omitempty"`
	Description  string    `json:"description,omitempty"`
	SyllabusURL  string    `json:"syllabus_url,omitempty"`
	MaterialsURL string    `json:"materials_url,omitempty"`
	Content      Content   `json:"content"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Content is the course page material, stored as a single JSON text column.
type Content struct {
	Videos []Link `json:"videos"`
	PDFs   []Link `json:"pdfs"`
	Notes  string `json:"notes"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url" validate:"required"`
}

func (c Content) IsEmpty() bool {
	return len(c.Videos) == 0 && len(c.PDFs) == 0 && c.Notes == ""
}

// Value implements driver.Valuer.
func (c Content) Value() (driver.Value, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling course content")
	}
	return string(b), nil
}

// Scan implements sql.Scanner. NULL and blank values scan to an empty Content.
func (c *Content) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Content{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into course.Content", src)
	}
	*c = Content{}
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, c), "unmarshalling course content")
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code         string  `json:"code" validate:"required,max=20"`
	Name         string  `json:"name" validate:"required,max=200"`
	Level        string  `json:"level" validate:"omitempty,max=50"`
	Semester     string  `json:"semester" validate:"omitempty,max=20"`
	Credits      int     `json:"credits" validate:"gte=0"`
	Description  string  `json:"description"`
	SyllabusURL  string  `json:"syllabus_url" validate:"omitempty,url"`
	MaterialsURL string  `json:"materials_url" validate:"omitempty,url"`
	Content      Content `json:"content" validate:"dive"`
	IsActive     *bool   `json:"is_active"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code         *string  `json:"code" validate:"omitempty,min=1,max=20"`
	Name         *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Level        *string  `json:"level" validate:"omitempty,max=50"`
	Semester     *string  `json:"semester" validate:"omitempty,max=20"`
	Credits      *int     `json:"credits" validate:"omitempty,gte=0"`
	Description  *string  `json:"description"`
	SyllabusURL  *string  `json:"syllabus_url" validate:"omitempty,url"`
	MaterialsURL *string  `json:"materials_url" validate:"omitempty,url"`
	Content      *Content `json:"content"`
	IsActive     *bool    `json:"is_active"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Code != nil {
		code := core.CleanString(*uc.Code)
		uc.Code = &code
	}
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(c Course) Course {
	if uc.Code != nil {
		c.Code = *uc.Code
	}
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Semester != nil {
		c.Semester = *uc.Semester
	}
	if uc.Credits != nil {
		c.Credits = *uc.Credits
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.SyllabusURL != nil {
		c.SyllabusURL = *uc.SyllabusURL
	}
	if uc.MaterialsURL != nil {
		c.MaterialsURL = *uc.MaterialsURL
	}
	if uc.Content != nil {
		c.Content = *uc.Content
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	return c
}

type QueryFilter struct {
	Level      string `query:"level"`
	ActiveOnly bool   `query:"-"`
	core.Pagination
}

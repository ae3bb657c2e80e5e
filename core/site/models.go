// Package site holds the public content of the department website: announcements, publications,
// the gallery and the CV of the department head.
package site

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ibca/academic/core"
)

// Announcement types
const (
	AnnouncementDepartment = "department"
	AnnouncementCourse     = "course"
	AnnouncementEvent      = "event"
)

// Publication types
const (
	PublicationArticle = "article"
	PublicationProject = "project"
)

// Gallery item types
const (
	GalleryPhoto = "photo"
	GalleryVideo = "video"
)

type Announcement struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        string    `json:"announcement_type,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Date        string    `json:"date,omitempty"`
	IsPublished bool      `json:"is_published"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewAnnouncement struct {
	Title       string `json:"title" validate:"required,max=200"`
	Content     string `json:"content" validate:"required"`
	Type        string `json:"announcement_type" validate:"omitempty,oneof=department course event"`
	ImageURL    string `json:"image_url" validate:"omitempty,max=500"`
	Date        string `json:"date" validate:"max=50"`
	IsPublished *bool  `json:"is_published"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	if na.Type == "" {
		na.Type = AnnouncementDepartment
	}
	return validate.Struct(na)
}

type UpdateAnnouncement struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content     *string `json:"content" validate:"omitempty,min=1"`
	Type        *string `json:"announcement_type" validate:"omitempty,oneof=department course event"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=500"`
	Date        *string `json:"date" validate:"omitempty,max=50"`
	IsPublished *bool   `json:"is_published"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

func (ua UpdateAnnouncement) apply(a Announcement) Announcement {
	if ua.Title != nil {
		a.Title = core.CleanString(*ua.Title)
	}
	if ua.Content != nil {
		a.Content = core.CleanString(*ua.Content)
	}
	if ua.Type != nil {
		a.Type = *ua.Type
	}
	if ua.ImageURL != nil {
		a.ImageURL = *ua.ImageURL
	}
	if ua.Date != nil {
		a.Date = *ua.Date
	}
	if ua.IsPublished != nil {
		a.IsPublished = *ua.IsPublished
	}
	return a
}

type Publication struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Authors     string    `json:"authors"`
	Year        int       `json:"year"`
	Type        string    `json:"publication_type,omitempty"`
	Journal     string    `json:"journal,omitempty"`
	Conference  string    `json:"conference,omitempty"`
	Location    string    `json:"location,omitempty"`
	DOI         string    `json:"doi,omitempty"`
	PDFURL      string    `json:"pdf_url,omitempty"`
	ExternalURL string    `json:"external_url,omitempty"`
	Abstract    string    `json:"abstract,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewPublication struct {
	Title       string `json:"title" validate:"required,max=300"`
	Authors     string `json:"authors" validate:"required,max=500"`
	Year        int    `json:"year" validate:"required,min=1900,max=2100"`
	Type        string `json:"publication_type" validate:"omitempty,oneof=article project"`
	Journal     string `json:"journal" validate:"max=200"`
	Conference  string `json:"conference" validate:"max=200"`
	Location    string `json:"location" validate:"max=200"`
	DOI         string `json:"doi" validate:"max=100"`
	PDFURL      string `json:"pdf_url" validate:"max=500"`
	ExternalURL string `json:"external_url" validate:"omitempty,url,max=500"`
	Abstract    string `json:"abstract"`
	IsPublished *bool  `json:"is_published"`
}

func (np *NewPublication) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Authors = core.CleanString(np.Authors)
	if np.Type == "" {
		np.Type = PublicationArticle
	}
	return validate.Struct(np)
}

type UpdatePublication struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=300"`
	Authors     *string `json:"authors" validate:"omitempty,min=1,max=500"`
	Year        *int    `json:"year" validate:"omitempty,min=1900,max=2100"`
	Type        *string `json:"publication_type" validate:"omitempty,oneof=article project"`
	Journal     *string `json:"journal" validate:"omitempty,max=200"`
	Conference  *string `json:"conference" validate:"omitempty,max=200"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	DOI         *string `json:"doi" validate:"omitempty,max=100"`
	PDFURL      *string `json:"pdf_url" validate:"omitempty,max=500"`
	ExternalURL *string `json:"external_url" validate:"omitempty,url,max=500"`
	Abstract    *string `json:"abstract"`
	IsPublished *bool   `json:"is_published"`
}

func (up *UpdatePublication) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

func (up UpdatePublication) apply(p Publication) Publication {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = core.CleanString(*src)
		}
	}
	set(&p.Title, up.Title)
	set(&p.Authors, up.Authors)
	set(&p.Type, up.Type)
	set(&p.Journal, up.Journal)
	set(&p.Conference, up.Conference)
	set(&p.Location, up.Location)
	set(&p.DOI, up.DOI)
	set(&p.PDFURL, up.PDFURL)
	set(&p.ExternalURL, up.ExternalURL)
	set(&p.Abstract, up.Abstract)
	if up.Year != nil {
		p.Year = *up.Year
	}
	if up.IsPublished != nil {
		p.IsPublished = *up.IsPublished
	}
	return p
}

type GalleryItem struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Type         string    `json:"item_type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Date         string    `json:"date,omitempty"`
	IsPublished  bool      `json:"is_published"`
	OrderIndex   int       `json:"order_index"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type NewGalleryItem struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description"`
	Type         string `json:"item_type" validate:"omitempty,oneof=photo video"`
	URL          string `json:"url" validate:"required,max=500"`
	ThumbnailURL string `json:"thumbnail_url" validate:"max=500"`
	Date         string `json:"date" validate:"max=50"`
	IsPublished  *bool  `json:"is_published"`
	OrderIndex   int    `json:"order_index"`
}

func (ng *NewGalleryItem) Validate(validate *validator.Validate) error {
	ng.Title = core.CleanString(ng.Title)
	if ng.Type == "" {
		ng.Type = GalleryPhoto
	}
	return validate.Struct(ng)
}

// CV is the single curriculum vitae shown on the site.
type CV struct {
	FullName          string    `json:"full_name"`
	Title             string    `json:"title,omitempty"`
	PhotoURL          string    `json:"photo_url,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Office            string    `json:"office,omitempty"`
	Bio               string    `json:"bio,omitempty"`
	Education         string    `json:"education,omitempty"`
	Experience        string    `json:"experience,omitempty"`
	ResearchInterests string    `json:"research_interests,omitempty"`
	PDFURL            string    `json:"pdf_url,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

type CVInput struct {
	FullName          string `json:"full_name" validate:"required,max=200"`
	Title             string `json:"title" validate:"max=200"`
	PhotoURL          string `json:"photo_url" validate:"max=500"`
	Email             string `json:"email" validate:"omitempty,email"`
	Phone             string `json:"phone" validate:"max=50"`
	Office            string `json:"office" validate:"max=200"`
	Bio               string `json:"bio"`
	Education         string `json:"education"`
	Experience        string `json:"experience"`
	ResearchInterests string `json:"research_interests"`
	PDFURL            string `json:"pdf_url" validate:"max=500"`
}

func (in *CVInput) Validate(validate *validator.Validate) error {
	in.FullName = core.CleanString(in.FullName)
	in.Email = core.CleanString(in.Email, true /* lower */)
	return validate.Struct(in)
}

func (in CVInput) toCV() CV {
	return CV{
		FullName:          in.FullName,
		Title:             core.CleanString(in.Title),
		PhotoURL:          in.PhotoURL,
		Email:             in.Email,
		Phone:             core.CleanString(in.Phone),
		Office:            core.CleanString(in.Office),
		Bio:               in.Bio,
		Education:         in.Education,
		Experience:        in.Experience,
		ResearchInterests: in.ResearchInterests,
		PDFURL:            in.PDFURL,
	}
}

// Filter selects published content of a type. Admins may include unpublished content.
type Filter struct {
	Type               string `query:"type"`
	IncludeUnpublished bool   `query:"-"`
	core.Pagination
}

// Stats is the analytics dashboard summary.
type Stats struct {
	PageViews          int64 `json:"page_views"`
	UniqueVisitors     int64 `json:"unique_visitors"`
	TotalAnnouncements int   `json:"total_announcements"`
	TotalCourses       int   `json:"total_courses"`
	TotalPublications  int   `json:"total_publications"`
	TotalGalleryItems  int   `json:"total_gallery_items"`
	TotalStudents      int   `json:"total_students"`
	ActiveStudents     int   `json:"active_students"`
}

package site

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/upload"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrAnnouncementNotFound = core.NewNotFoundError("announcement")
	ErrPublicationNotFound  = core.NewNotFoundError("publication")
	ErrGalleryItemNotFound  = core.NewNotFoundError("gallery item")
	ErrCVNotFound           = core.NewNotFoundError("cv")
	ErrCVExists             = core.NewValidationError(nil, core.FieldError{Field: "cv", Error: "a cv already exists, update it instead"})
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		// QueryAnnouncements orders by creation date, newest first.
		QueryAnnouncements(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, id int, exec ...core.DBExecutor) (Announcement, error)
		// IncrementAnnouncementViews adds one view and returns the updated announcement.
		IncrementAnnouncementViews(ctx context.Context, id int, exec ...core.DBExecutor) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id int, exec ...core.DBExecutor) error
		CountAnnouncements(ctx context.Context, exec ...core.DBExecutor) (int, error)

		CreatePublication(ctx context.Context, p Publication, exec ...core.DBExecutor) (Publication, error)
		// QueryPublications orders by year, latest first.
		QueryPublications(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Publication, error)
		GetPublication(ctx context.Context, id int, exec ...core.DBExecutor) (Publication, error)
		UpdatePublication(ctx context.Context, p Publication, exec ...core.DBExecutor) (Publication, error)
		DeletePublication(ctx context.Context, id int, exec ...core.DBExecutor) error
		CountPublications(ctx context.Context, exec ...core.DBExecutor) (int, error)

		CreateGalleryItem(ctx context.Context, g GalleryItem, exec ...core.DBExecutor) (GalleryItem, error)
		// QueryGalleryItems orders by order index, then newest first.
		QueryGalleryItems(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]GalleryItem, error)
		GetGalleryItem(ctx context.Context, id int, exec ...core.DBExecutor) (GalleryItem, error)
		DeleteGalleryItem(ctx context.Context, id int, exec ...core.DBExecutor) error
		CountGalleryItems(ctx context.Context, exec ...core.DBExecutor) (int, error)

		// GetCV returns ErrCVNotFound when no cv was saved yet.
		GetCV(ctx context.Context, exec ...core.DBExecutor) (CV, error)
		// InsertCV fails with ErrCVExists when a cv was already saved.
		InsertCV(ctx context.Context, cv CV, exec ...core.DBExecutor) (CV, error)
		UpsertCV(ctx context.Context, cv CV, exec ...core.DBExecutor) (CV, error)
	}

	CourseCounter interface {
		Count(ctx context.Context) (int, error)
	}

	StudentCounter interface {
		Count(ctx context.Context, activeOnly bool) (int, error)
	}

	Service struct {
		repo     Repository
		files    core.FileStore
		visits   core.VisitCounter
		courses  CourseCounter
		students StudentCounter
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	files core.FileStore,
	visits core.VisitCounter,
	courses CourseCounter,
	students StudentCounter,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		files:    files,
		visits:   visits,
		courses:  courses,
		students: students,
		logger:   logger,
	}
}

// Announcements

func (svc *Service) CreateAnnouncement(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateAnnouncement(ctx, Announcement{
		Title:       na.Title,
		Content:     na.Content,
		Type:        na.Type,
		ImageURL:    na.ImageURL,
		Date:        na.Date,
		IsPublished: na.IsPublished == nil || *na.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryAnnouncements(ctx context.Context, filter Filter) ([]Announcement, error) {
	filter.Clamp(100)
	return svc.repo.QueryAnnouncements(ctx, filter)
}

// ViewAnnouncement returns a published announcement and counts the view.
func (svc *Service) ViewAnnouncement(ctx context.Context, id int) (Announcement, error) {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if !a.IsPublished {
		return Announcement{}, ErrAnnouncementNotFound
	}
	return svc.repo.IncrementAnnouncementViews(ctx, id)
}

func (svc *Service) UpdateAnnouncement(ctx context.Context, id int, ua UpdateAnnouncement) (Announcement, error) {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	oldImage := a.ImageURL
	a = ua.apply(a)
	a.UpdatedAt = NowFunc().UTC()
	if a, err = svc.repo.UpdateAnnouncement(ctx, a); err != nil {
		return Announcement{}, err
	}
	if oldImage != a.ImageURL {
		svc.deleteFileAt(ctx, oldImage)
	}
	return a, nil
}

func (svc *Service) DeleteAnnouncement(ctx context.Context, id int) error {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteAnnouncement(ctx, id); err != nil {
		return err
	}
	svc.deleteFileAt(ctx, a.ImageURL)
	return nil
}

// Publications

func (svc *Service) CreatePublication(ctx context.Context, np NewPublication) (Publication, error) {
	now := NowFunc().UTC()
	return svc.repo.CreatePublication(ctx, Publication{
		Title:       np.Title,
		Authors:     np.Authors,
		Year:        np.Year,
		Type:        np.Type,
		Journal:     core.CleanString(np.Journal),
		Conference:  core.CleanString(np.Conference),
		Location:    core.CleanString(np.Location),
		DOI:         core.CleanString(np.DOI),
		PDFURL:      np.PDFURL,
		ExternalURL: np.ExternalURL,
		Abstract:    core.CleanString(np.Abstract),
		IsPublished: np.IsPublished == nil || *np.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryPublications(ctx context.Context, filter Filter) ([]Publication, error) {
	filter.Clamp(100)
	return svc.repo.QueryPublications(ctx, filter)
}

func (svc *Service) GetPublication(ctx context.Context, id int) (Publication, error) {
	return svc.repo.GetPublication(ctx, id)
}

func (svc *Service) UpdatePublication(ctx context.Context, id int, up UpdatePublication) (Publication, error) {
	p, err := svc.repo.GetPublication(ctx, id)
	if err != nil {
		return Publication{}, err
	}
	oldPDF := p.PDFURL
	p = up.apply(p)
	p.UpdatedAt = NowFunc().UTC()
	if p, err = svc.repo.UpdatePublication(ctx, p); err != nil {
		return Publication{}, err
	}
	if oldPDF != p.PDFURL {
		svc.deleteFileAt(ctx, oldPDF)
	}
	return p, nil
}

func (svc *Service) DeletePublication(ctx context.Context, id int) error {
	p, err := svc.repo.GetPublication(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeletePublication(ctx, id); err != nil {
		return err
	}
	svc.deleteFileAt(ctx, p.PDFURL)
	return nil
}

// Gallery

func (svc *Service) CreateGalleryItem(ctx context.Context, ng NewGalleryItem) (GalleryItem, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateGalleryItem(ctx, GalleryItem{
		Title:        ng.Title,
		Description:  core.CleanString(ng.Description),
		Type:         ng.Type,
		URL:          ng.URL,
		ThumbnailURL: ng.ThumbnailURL,
		Date:         ng.Date,
		IsPublished:  ng.IsPublished == nil || *ng.IsPublished,
		OrderIndex:   ng.OrderIndex,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) QueryGalleryItems(ctx context.Context, filter Filter) ([]GalleryItem, error) {
	filter.Clamp(200)
	return svc.repo.QueryGalleryItems(ctx, filter)
}

func (svc *Service) DeleteGalleryItem(ctx context.Context, id int) error {
	g, err := svc.repo.GetGalleryItem(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteGalleryItem(ctx, id); err != nil {
		return err
	}
	svc.deleteFileAt(ctx, g.URL)
	if g.ThumbnailURL != g.URL {
		svc.deleteFileAt(ctx, g.ThumbnailURL)
	}
	return nil
}

// CV

func (svc *Service) GetCV(ctx context.Context) (CV, error) {
	return svc.repo.GetCV(ctx)
}

// CreateCV saves the first cv. It fails once a cv exists.
func (svc *Service) CreateCV(ctx context.Context, in CVInput) (CV, error) {
	cv := in.toCV()
	cv.UpdatedAt = NowFunc().UTC()
	return svc.repo.InsertCV(ctx, cv)
}

// SaveCV creates or replaces the cv.
func (svc *Service) SaveCV(ctx context.Context, in CVInput) (CV, error) {
	cv := in.toCV()
	cv.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpsertCV(ctx, cv)
}

// SetCVFile points the photo or pdf of an existing cv at url.
func (svc *Service) SetCVFile(ctx context.Context, policy upload.Policy, url string) (CV, error) {
	cv, err := svc.repo.GetCV(ctx)
	if err != nil {
		return CV{}, err
	}
	var old string
	if policy.Name == upload.ImagePolicyName {
		old, cv.PhotoURL = cv.PhotoURL, url
	} else {
		old, cv.PDFURL = cv.PDFURL, url
	}
	cv.UpdatedAt = NowFunc().UTC()
	if cv, err = svc.repo.UpsertCV(ctx, cv); err != nil {
		return CV{}, err
	}
	if old != url {
		svc.deleteFileAt(ctx, old)
	}
	return cv, nil
}

// UploadCVFile stores f and points the photo (image policy) or the pdf of the existing cv at it.
func (svc *Service) UploadCVFile(ctx context.Context, f upload.File, policy upload.Policy) (CV, error) {
	if _, err := svc.repo.GetCV(ctx); err != nil {
		return CV{}, err
	}
	url, err := svc.StoreFile(ctx, f, policy)
	if err != nil {
		return CV{}, err
	}
	cv, err := svc.SetCVFile(ctx, policy, url)
	if err != nil {
		svc.deleteFileAt(ctx, url)
		return CV{}, err
	}
	return cv, nil
}

// Files

// StoreFile validates f against policy and stores it. It returns the public URL of the file.
func (svc *Service) StoreFile(ctx context.Context, f upload.File, policy upload.Policy) (string, error) {
	if err := upload.Validate(f.FileInfo, policy); err != nil {
		return "", err
	}
	key := fileKey(f, policy)
	url, err := svc.files.Save(ctx, key, f.Reader, f.DeclaredType())
	if err != nil {
		return "", core.NewStorageError("save", err)
	}
	return url, nil
}

func fileKey(f upload.File, policy upload.Policy) string {
	kind := "pdf"
	if policy.Name == upload.ImagePolicyName {
		kind = "image"
	}
	clean := core.SanitizeFilename(f.Name)
	stem := strings.TrimSuffix(clean, path.Ext(clean))
	ext := policy.Extension(f.DeclaredType())
	return path.Join(kind, fmt.Sprintf("%s_%s%s", stem, uuid.New().String()[:8], ext))
}

// deleteFileAt removes a stored file by its public URL. External URLs are left alone.
func (svc *Service) deleteFileAt(ctx context.Context, url string) {
	if url == "" {
		return
	}
	key, ok := svc.files.KeyFromURL(url)
	if !ok {
		return
	}
	if err := svc.files.Delete(ctx, key); err != nil && !core.IsNotFound(err) {
		svc.logger.Warn(fmt.Sprintf("deleting file %q: %v", key, err), err)
	}
}

// Analytics

// RecordVisit counts a page view of visitorID.
func (svc *Service) RecordVisit(ctx context.Context, visitorID string) error {
	return svc.visits.Record(ctx, visitorID)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	visits, err := svc.visits.Stats(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "reading visit counters")
	}
	stats.PageViews, stats.UniqueVisitors = visits.PageViews, visits.UniqueVisitors

	if stats.TotalAnnouncements, err = svc.repo.CountAnnouncements(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalPublications, err = svc.repo.CountPublications(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalGalleryItems, err = svc.repo.CountGalleryItems(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalCourses, err = svc.courses.Count(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalStudents, err = svc.students.Count(ctx, false); err != nil {
		return Stats{}, err
	}
	if stats.ActiveStudents, err = svc.students.Count(ctx, true); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

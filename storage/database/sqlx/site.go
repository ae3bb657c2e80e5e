package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/site"
)

const (
	announcementColumns = "id, title, content, announcement_type, image_url, date, is_published, views, created_at, updated_at"
	publicationColumns  = "id, title, authors, year, publication_type, journal, conference, location, doi, pdf_url, external_url, abstract, is_published, created_at, updated_at"
	galleryColumns      = "id, title, description, item_type, url, thumbnail_url, date, is_published, order_index, created_at, updated_at"
	cvColumns           = "full_name, title, photo_url, email, phone, office, bio, education, experience, research_interests, pdf_url, updated_at"
)

type announcementRow struct {
	ID          int         `db:"id"`
	Title       string      `db:"title"`
	Content     string      `db:"content"`
	Type        null.String `db:"announcement_type"`
	ImageURL    null.String `db:"image_url"`
	Date        null.String `db:"date"`
	IsPublished bool        `db:"is_published"`
	Views       int         `db:"views"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r announcementRow) announcement() site.Announcement {
	return site.Announcement{
		ID:          r.ID,
		Title:       r.Title,
		Content:     r.Content,
		Type:        r.Type.String,
		ImageURL:    r.ImageURL.String,
		Date:        r.Date.String,
		IsPublished: r.IsPublished,
		Views:       r.Views,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type publicationRow struct {
	ID          int         `db:"id"`
	Title       string      `db:"title"`
	Authors     string      `db:"authors"`
	Year        int         `db:"year"`
	Type        null.String `db:"publication_type"`
	Journal     null.String `db:"journal"`
	Conference  null.String `db:"conference"`
	Location    null.String `db:"location"`
	DOI         null.String `db:"doi"`
	PDFURL      null.String `db:"pdf_url"`
	ExternalURL null.String `db:"external_url"`
	Abstract    null.String `db:"abstract"`
	IsPublished bool        `db:"is_published"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r publicationRow) publication() site.Publication {
	return site.Publication{
		ID:          r.ID,
		Title:       r.Title,
		Authors:     r.Authors,
		Year:        r.Year,
		Type:        r.Type.String,
		Journal:     r.Journal.String,
		Conference:  r.Conference.String,
		Location:    r.Location.String,
		DOI:         r.DOI.String,
		PDFURL:      r.PDFURL.String,
		ExternalURL: r.ExternalURL.String,
		Abstract:    r.Abstract.String,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type galleryRow struct {
	ID           int         `db:"id"`
	Title        string      `db:"title"`
	Description  null.String `db:"description"`
	Type         null.String `db:"item_type"`
	URL          string      `db:"url"`
	ThumbnailURL null.String `db:"thumbnail_url"`
	Date         null.String `db:"date"`
	IsPublished  bool        `db:"is_published"`
	OrderIndex   int         `db:"order_index"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r galleryRow) item() site.GalleryItem {
	return site.GalleryItem{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description.String,
		Type:         r.Type.String,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL.String,
		Date:         r.Date.String,
		IsPublished:  r.IsPublished,
		OrderIndex:   r.OrderIndex,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type cvRow struct {
	FullName          string      `db:"full_name"`
	Title             null.String `db:"title"`
	PhotoURL          null.String `db:"photo_url"`
	Email             null.String `db:"email"`
	Phone             null.String `db:"phone"`
	Office            null.String `db:"office"`
	Bio               null.String `db:"bio"`
	Education         null.String `db:"education"`
	Experience        null.String `db:"experience"`
	ResearchInterests null.String `db:"research_interests"`
	PDFURL            null.String `db:"pdf_url"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (r cvRow) cv() site.CV {
	return site.CV{
		FullName:          r.FullName,
		Title:             r.Title.String,
		PhotoURL:          r.PhotoURL.String,
		Email:             r.Email.String,
		Phone:             r.Phone.String,
		Office:            r.Office.String,
		Bio:               r.Bio.String,
		Education:         r.Education.String,
		Experience:        r.Experience.String,
		ResearchInterests: r.ResearchInterests.String,
		PDFURL:            r.PDFURL.String,
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func cvArgs(cv site.CV) []interface{} {
	return []interface{}{
		cv.FullName, nullString(cv.Title), nullString(cv.PhotoURL), nullString(cv.Email), nullString(cv.Phone),
		nullString(cv.Office), nullString(cv.Bio), nullString(cv.Education), nullString(cv.Experience),
		nullString(cv.ResearchInterests), nullString(cv.PDFURL), cv.UpdatedAt,
	}
}

type siteRepository struct {
	repository
}

var _ site.Repository = (*siteRepository)(nil) // interface compliance check

func NewSiteRepository(exec core.DBExecutor) *siteRepository {
	return &siteRepository{repository{exec: exec}}
}

func siteFilter(filter site.Filter) where {
	var w where
	if !filter.IncludeUnpublished {
		w.add("is_published")
	}
	return w
}

func (repo siteRepository) count(ctx context.Context, exec []core.DBExecutor, table string) (int, error) {
	var n int
	if err := repo.getExec(exec).GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return n, nil
}

func (repo siteRepository) delete(ctx context.Context, exec []core.DBExecutor, table string, id int, notFound error) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return checkAffected(res, notFound, "deleting from "+table)
}

// Announcements

func (repo siteRepository) CreateAnnouncement(ctx context.Context, a site.Announcement, exec ...core.DBExecutor) (site.Announcement, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO announcements
		(title, content, announcement_type, image_url, date, is_published, views, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?) RETURNING id`)
	err := e.QueryRowxContext(ctx, q,
		a.Title, a.Content, nullString(a.Type), nullString(a.ImageURL), nullString(a.Date), a.IsPublished, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return site.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (repo siteRepository) QueryAnnouncements(ctx context.Context, filter site.Filter, exec ...core.DBExecutor) ([]site.Announcement, error) {
	w := siteFilter(filter)
	if filter.Type != "" {
		w.add("announcement_type = ?", filter.Type)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + announcementColumns + " FROM announcements" + w.String() + " ORDER BY created_at DESC, id DESC" + paginate(filter.Pagination))

	var rows []announcementRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}
	as := make([]site.Announcement, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.announcement())
	}
	return as, nil
}

func (repo siteRepository) GetAnnouncement(ctx context.Context, id int, exec ...core.DBExecutor) (site.Announcement, error) {
	e := repo.getExec(exec)
	var r announcementRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+announcementColumns+" FROM announcements WHERE id = ?"), id); err != nil {
		return site.Announcement{}, trapNoRowsErr(err, site.ErrAnnouncementNotFound, "selecting announcement")
	}
	return r.announcement(), nil
}

func (repo siteRepository) IncrementAnnouncementViews(ctx context.Context, id int, exec ...core.DBExecutor) (site.Announcement, error) {
	e := repo.getExec(exec)
	var r announcementRow
	q := e.Rebind("UPDATE announcements SET views = views + 1 WHERE id = ? RETURNING " + announcementColumns)
	if err := e.GetContext(ctx, &r, q, id); err != nil {
		return site.Announcement{}, trapNoRowsErr(err, site.ErrAnnouncementNotFound, "counting announcement view")
	}
	return r.announcement(), nil
}

func (repo siteRepository) UpdateAnnouncement(ctx context.Context, a site.Announcement, exec ...core.DBExecutor) (site.Announcement, error) {
	e := repo.getExec(exec)
	var r announcementRow
	q := e.Rebind(`UPDATE announcements SET
		title = ?, content = ?, announcement_type = ?, image_url = ?, date = ?, is_published = ?, updated_at = ?
		WHERE id = ? RETURNING ` + announcementColumns)
	err := e.GetContext(ctx, &r, q,
		a.Title, a.Content, nullString(a.Type), nullString(a.ImageURL), nullString(a.Date), a.IsPublished, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return site.Announcement{}, trapNoRowsErr(err, site.ErrAnnouncementNotFound, "updating announcement")
	}
	return r.announcement(), nil
}

func (repo siteRepository) DeleteAnnouncement(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return repo.delete(ctx, exec, "announcements", id, site.ErrAnnouncementNotFound)
}

func (repo siteRepository) CountAnnouncements(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	return repo.count(ctx, exec, "announcements")
}

// Publications

func publicationArgs(p site.Publication) []interface{} {
	return []interface{}{
		p.Title, p.Authors, p.Year, nullString(p.Type), nullString(p.Journal), nullString(p.Conference),
		nullString(p.Location), nullString(p.DOI), nullString(p.PDFURL), nullString(p.ExternalURL),
		nullString(p.Abstract), p.IsPublished,
	}
}

func (repo siteRepository) CreatePublication(ctx context.Context, p site.Publication, exec ...core.DBExecutor) (site.Publication, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO publications
		(title, authors, year, publication_type, journal, conference, location, doi, pdf_url, external_url, abstract,
		 is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	args := append(publicationArgs(p), p.CreatedAt, p.UpdatedAt)
	if err := e.QueryRowxContext(ctx, q, args...).Scan(&p.ID); err != nil {
		return site.Publication{}, errors.Wrap(err, "inserting publication")
	}
	return p, nil
}

func (repo siteRepository) QueryPublications(ctx context.Context, filter site.Filter, exec ...core.DBExecutor) ([]site.Publication, error) {
	w := siteFilter(filter)
	if filter.Type != "" {
		w.add("publication_type = ?", filter.Type)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + publicationColumns + " FROM publications" + w.String() + " ORDER BY year DESC, id DESC" + paginate(filter.Pagination))

	var rows []publicationRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting publications")
	}
	ps := make([]site.Publication, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.publication())
	}
	return ps, nil
}

func (repo siteRepository) GetPublication(ctx context.Context, id int, exec ...core.DBExecutor) (site.Publication, error) {
	e := repo.getExec(exec)
	var r publicationRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+publicationColumns+" FROM publications WHERE id = ?"), id); err != nil {
		return site.Publication{}, trapNoRowsErr(err, site.ErrPublicationNotFound, "selecting publication")
	}
	return r.publication(), nil
}

func (repo siteRepository) UpdatePublication(ctx context.Context, p site.Publication, exec ...core.DBExecutor) (site.Publication, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`UPDATE publications SET
		title = ?, authors = ?, year = ?, publication_type = ?, journal = ?, conference = ?, location = ?, doi = ?,
		pdf_url = ?, external_url = ?, abstract = ?, is_published = ?, updated_at = ?
		WHERE id = ?`)
	args := append(publicationArgs(p), p.UpdatedAt, p.ID)
	res, err := e.ExecContext(ctx, q, args...)
	if err != nil {
		return site.Publication{}, errors.Wrap(err, "updating publication")
	}
	if err := checkAffected(res, site.ErrPublicationNotFound, "updating publication"); err != nil {
		return site.Publication{}, err
	}
	return p, nil
}

func (repo siteRepository) DeletePublication(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return repo.delete(ctx, exec, "publications", id, site.ErrPublicationNotFound)
}

func (repo siteRepository) CountPublications(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	return repo.count(ctx, exec, "publications")
}

// Gallery

func (repo siteRepository) CreateGalleryItem(ctx context.Context, g site.GalleryItem, exec ...core.DBExecutor) (site.GalleryItem, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO gallery_items
		(title, description, item_type, url, thumbnail_url, date, is_published, order_index, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := e.QueryRowxContext(ctx, q,
		g.Title, nullString(g.Description), nullString(g.Type), g.URL, nullString(g.ThumbnailURL), nullString(g.Date),
		g.IsPublished, g.OrderIndex, g.CreatedAt, g.UpdatedAt,
	).Scan(&g.ID)
	if err != nil {
		return site.GalleryItem{}, errors.Wrap(err, "inserting gallery item")
	}
	return g, nil
}

func (repo siteRepository) QueryGalleryItems(ctx context.Context, filter site.Filter, exec ...core.DBExecutor) ([]site.GalleryItem, error) {
	w := siteFilter(filter)
	if filter.Type != "" {
		w.add("item_type = ?", filter.Type)
	}
	e := repo.getExec(exec)
	q := e.Rebind("SELECT " + galleryColumns + " FROM gallery_items" + w.String() +
		" ORDER BY order_index, created_at DESC, id DESC" + paginate(filter.Pagination))

	var rows []galleryRow
	if err := e.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting gallery items")
	}
	items := make([]site.GalleryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (repo siteRepository) GetGalleryItem(ctx context.Context, id int, exec ...core.DBExecutor) (site.GalleryItem, error) {
	e := repo.getExec(exec)
	var r galleryRow
	if err := e.GetContext(ctx, &r, e.Rebind("SELECT "+galleryColumns+" FROM gallery_items WHERE id = ?"), id); err != nil {
		return site.GalleryItem{}, trapNoRowsErr(err, site.ErrGalleryItemNotFound, "selecting gallery item")
	}
	return r.item(), nil
}

func (repo siteRepository) DeleteGalleryItem(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return repo.delete(ctx, exec, "gallery_items", id, site.ErrGalleryItemNotFound)
}

func (repo siteRepository) CountGalleryItems(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	return repo.count(ctx, exec, "gallery_items")
}

// CV

func (repo siteRepository) GetCV(ctx context.Context, exec ...core.DBExecutor) (site.CV, error) {
	var r cvRow
	if err := repo.getExec(exec).GetContext(ctx, &r, "SELECT "+cvColumns+" FROM cv WHERE id = 1"); err != nil {
		return site.CV{}, trapNoRowsErr(err, site.ErrCVNotFound, "selecting cv")
	}
	return r.cv(), nil
}

func (repo siteRepository) InsertCV(ctx context.Context, cv site.CV, exec ...core.DBExecutor) (site.CV, error) {
	e := repo.getExec(exec)
	q := e.Rebind("INSERT INTO cv (id, " + cvColumns + ") VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if _, err := e.ExecContext(ctx, q, cvArgs(cv)...); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return site.CV{}, site.ErrCVExists
		}
		return site.CV{}, errors.Wrap(err, "inserting cv")
	}
	return cv, nil
}

func (repo siteRepository) UpsertCV(ctx context.Context, cv site.CV, exec ...core.DBExecutor) (site.CV, error) {
	e := repo.getExec(exec)
	q := e.Rebind(`INSERT INTO cv (id, ` + cvColumns + `) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		full_name = EXCLUDED.full_name, title = EXCLUDED.title, photo_url = EXCLUDED.photo_url,
		email = EXCLUDED.email, phone = EXCLUDED.phone, office = EXCLUDED.office, bio = EXCLUDED.bio,
		education = EXCLUDED.education, experience = EXCLUDED.experience,
		research_interests = EXCLUDED.research_interests, pdf_url = EXCLUDED.pdf_url, updated_at = EXCLUDED.updated_at`)
	if _, err := e.ExecContext(ctx, q, cvArgs(cv)...); err != nil {
		return site.CV{}, errors.Wrap(err, "saving cv")
	}
	return cv, nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/site"
)

type siteRepository struct {
	db *DB
}

var _ site.Repository = (*siteRepository)(nil) // interface compliance check

func NewSiteRepository(db *DB) *siteRepository {
	return &siteRepository{db: db}
}

func visible(filter site.Filter, published bool, typ string) bool {
	if !filter.IncludeUnpublished && !published {
		return false
	}
	return filter.Type == "" || filter.Type == typ
}

// Announcements

func (repo *siteRepository) CreateAnnouncement(_ context.Context, a site.Announcement, _ ...core.DBExecutor) (site.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextPK()
	a.Views = 0
	repo.db.announcements[a.ID] = a
	return a, nil
}

func (repo *siteRepository) QueryAnnouncements(_ context.Context, filter site.Filter, _ ...core.DBExecutor) ([]site.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	as := make([]site.Announcement, 0)
	for _, a := range repo.db.announcements {
		if visible(filter, a.IsPublished, a.Type) {
			as = append(as, a)
		}
	}
	sort.Slice(as, func(i, j int) bool {
		if !as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].CreatedAt.After(as[j].CreatedAt)
		}
		return as[i].ID > as[j].ID
	})
	start, end := filter.Window(len(as))
	return as[start:end], nil
}

func (repo *siteRepository) GetAnnouncement(_ context.Context, id int, _ ...core.DBExecutor) (site.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.announcements[id]; ok {
		return a, nil
	}
	return site.Announcement{}, site.ErrAnnouncementNotFound
}

func (repo *siteRepository) IncrementAnnouncementViews(_ context.Context, id int, _ ...core.DBExecutor) (site.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.announcements[id]
	if !ok {
		return site.Announcement{}, site.ErrAnnouncementNotFound
	}
	a.Views++
	repo.db.announcements[id] = a
	return a, nil
}

func (repo *siteRepository) UpdateAnnouncement(_ context.Context, a site.Announcement, _ ...core.DBExecutor) (site.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.announcements[a.ID]; !ok {
		return site.Announcement{}, site.ErrAnnouncementNotFound
	}
	repo.db.announcements[a.ID] = a
	return a, nil
}

func (repo *siteRepository) DeleteAnnouncement(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.announcements[id]; !ok {
		return site.ErrAnnouncementNotFound
	}
	delete(repo.db.announcements, id)
	return nil
}

func (repo *siteRepository) CountAnnouncements(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.announcements), nil
}

// Publications

func (repo *siteRepository) CreatePublication(_ context.Context, p site.Publication, _ ...core.DBExecutor) (site.Publication, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = repo.db.nextPK()
	repo.db.publications[p.ID] = p
	return p, nil
}

func (repo *siteRepository) QueryPublications(_ context.Context, filter site.Filter, _ ...core.DBExecutor) ([]site.Publication, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ps := make([]site.Publication, 0)
	for _, p := range repo.db.publications {
		if visible(filter, p.IsPublished, p.Type) {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Year != ps[j].Year {
			return ps[i].Year > ps[j].Year
		}
		return ps[i].ID > ps[j].ID
	})
	start, end := filter.Window(len(ps))
	return ps[start:end], nil
}

func (repo *siteRepository) GetPublication(_ context.Context, id int, _ ...core.DBExecutor) (site.Publication, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.publications[id]; ok {
		return p, nil
	}
	return site.Publication{}, site.ErrPublicationNotFound
}

func (repo *siteRepository) UpdatePublication(_ context.Context, p site.Publication, _ ...core.DBExecutor) (site.Publication, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.publications[p.ID]; !ok {
		return site.Publication{}, site.ErrPublicationNotFound
	}
	repo.db.publications[p.ID] = p
	return p, nil
}

func (repo *siteRepository) DeletePublication(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.publications[id]; !ok {
		return site.ErrPublicationNotFound
	}
	delete(repo.db.publications, id)
	return nil
}

func (repo *siteRepository) CountPublications(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.publications), nil
}

// Gallery

func (repo *siteRepository) CreateGalleryItem(_ context.Context, g site.GalleryItem, _ ...core.DBExecutor) (site.GalleryItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g.ID = repo.db.nextPK()
	repo.db.gallery[g.ID] = g
	return g, nil
}

func (repo *siteRepository) QueryGalleryItems(_ context.Context, filter site.Filter, _ ...core.DBExecutor) ([]site.GalleryItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]site.GalleryItem, 0)
	for _, g := range repo.db.gallery {
		if visible(filter, g.IsPublished, g.Type) {
			items = append(items, g)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].OrderIndex != items[j].OrderIndex {
			return items[i].OrderIndex < items[j].OrderIndex
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	start, end := filter.Window(len(items))
	return items[start:end], nil
}

func (repo *siteRepository) GetGalleryItem(_ context.Context, id int, _ ...core.DBExecutor) (site.GalleryItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.gallery[id]; ok {
		return g, nil
	}
	return site.GalleryItem{}, site.ErrGalleryItemNotFound
}

func (repo *siteRepository) DeleteGalleryItem(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.gallery[id]; !ok {
		return site.ErrGalleryItemNotFound
	}
	delete(repo.db.gallery, id)
	return nil
}

func (repo *siteRepository) CountGalleryItems(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.gallery), nil
}

// CV

func (repo *siteRepository) GetCV(_ context.Context, _ ...core.DBExecutor) (site.CV, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.db.cv == nil {
		return site.CV{}, site.ErrCVNotFound
	}
	return *repo.db.cv, nil
}

func (repo *siteRepository) InsertCV(_ context.Context, cv site.CV, _ ...core.DBExecutor) (site.CV, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.cv != nil {
		return site.CV{}, site.ErrCVExists
	}
	repo.db.cv = &cv
	return cv, nil
}

func (repo *siteRepository) UpsertCV(_ context.Context, cv site.CV, _ ...core.DBExecutor) (site.CV, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.cv = &cv
	return cv, nil
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excludedID int, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.courses {
		if c.Code == code && c.ID != excludedID {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.nextPK()
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	start, end := filter.Window(len(courses))
	return courses[start:end], nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCoursesByID(_ context.Context, ids []int, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := repo.db.courses[id]; ok {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[c.ID] = c
	return c, nil
}

// DeleteCourse cascades to the assignments of the course, like the foreign key does in postgres.
func (repo *courseRepository) DeleteCourse(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for aid, a := range repo.db.assignments {
		if a.CourseID == id {
			delete(repo.db.assignments, aid)
		}
	}
	return nil
}

func (repo *courseRepository) CountCourses(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.courses), nil
}

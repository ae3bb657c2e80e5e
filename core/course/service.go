package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("course")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another course than excludedID uses code.
		CheckCodeUniqueness(ctx context.Context, code string, excludedID int, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id int, exec ...core.DBExecutor) (Course, error)
		// GetCoursesByID returns the existing courses among ids, in no particular order.
		GetCoursesByID(ctx context.Context, ids []int, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error
		CountCourses(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, code string, excludedID int) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code, excludedID); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return errors.Wrap(err, "checking code uniqueness")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.checkUniqueness(ctx, nc.Code, 0); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	c := Course{
		Code:         nc.Code,
		Name:         nc.Name,
		Level:        nc.Level,
		Semester:     nc.Semester,
		Credits:      nc.Credits,
		Description:  nc.Description,
		SyllabusURL:  nc.SyllabusURL,
		MaterialsURL: nc.MaterialsURL,
		Content:      nc.Content,
		IsActive:     nc.IsActive == nil || *nc.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// FindMissing returns the ids that do not belong to an existing course.
func (svc *Service) FindMissing(ctx context.Context, ids []int) ([]int, error) {
	courses, err := svc.repo.GetCoursesByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting courses by ID")
	}
	found := make(map[int]bool, len(courses))
	for _, c := range courses {
		found[c.ID] = true
	}
	var missing []int
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (svc *Service) Update(ctx context.Context, id int, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Code != nil && *uc.Code != c.Code {
		if err := svc.checkUniqueness(ctx, *uc.Code, id); err != nil {
			return Course{}, err
		}
	}
	c = uc.apply(c)
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountCourses(ctx)
}

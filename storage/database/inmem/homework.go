package inmemdb

import (
	"context"
	"sort"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/homework"
)

type homeworkRepository struct {
	db *DB
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db *DB) *homeworkRepository {
	return &homeworkRepository{db: db}
}

func (repo *homeworkRepository) CreateAssignment(_ context.Context, a homework.Assignment, _ ...core.DBExecutor) (homework.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *homeworkRepository) QueryAssignments(_ context.Context, filter homework.AssignmentFilter, _ ...core.DBExecutor) ([]homework.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var allowed map[int]bool
	if filter.CourseIDs != nil {
		allowed = make(map[int]bool, len(filter.CourseIDs))
		for _, id := range filter.CourseIDs {
			allowed[id] = true
		}
	}

	as := make([]homework.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.CourseID != 0 && a.CourseID != filter.CourseID {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		if allowed != nil && !allowed[a.CourseID] {
			continue
		}
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool {
		if !as[i].DueDate.Equal(as[j].DueDate) {
			return as[i].DueDate.After(as[j].DueDate)
		}
		return as[i].ID > as[j].ID
	})
	return as, nil
}

func (repo *homeworkRepository) GetAssignment(_ context.Context, id int, _ ...core.DBExecutor) (homework.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return homework.Assignment{}, homework.ErrAssignmentNotFound
}

func (repo *homeworkRepository) UpdateAssignment(_ context.Context, a homework.Assignment, _ ...core.DBExecutor) (homework.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return homework.Assignment{}, homework.ErrAssignmentNotFound
	}
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *homeworkRepository) DeleteAssignment(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return homework.ErrAssignmentNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}

func (repo *homeworkRepository) ReplaceSubmission(
	_ context.Context,
	sub homework.Submission,
	_ ...core.DBExecutor,
) (homework.Submission, *homework.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var replaced *homework.Submission
	for id, s := range repo.db.submissions {
		if s.StudentID == sub.StudentID && s.AssignmentID == sub.AssignmentID {
			prev := s
			replaced = &prev
			delete(repo.db.submissions, id)
		}
	}
	sub.ID = repo.db.nextPK()
	repo.db.submissions[sub.ID] = sub
	return sub, replaced, nil
}

func (repo *homeworkRepository) QuerySubmissions(_ context.Context, filter homework.SubmissionFilter, _ ...core.DBExecutor) ([]homework.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]homework.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.StudentNumber != "" && s.StudentNumber != filter.StudentNumber {
			continue
		}
		if filter.CourseID != 0 && s.CourseID != filter.CourseID {
			continue
		}
		if filter.AssignmentID != 0 && s.AssignmentID != filter.AssignmentID {
			continue
		}
		subs = append(subs, s)
	}
	// newest first; other orderings are only honoured by the sql repository
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].UploadDate.Equal(subs[j].UploadDate) {
			return subs[i].UploadDate.After(subs[j].UploadDate)
		}
		return subs[i].ID > subs[j].ID
	})
	start, end := filter.Window(len(subs))
	return subs[start:end], nil
}

func (repo *homeworkRepository) GetSubmission(_ context.Context, id int, _ ...core.DBExecutor) (homework.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return homework.Submission{}, homework.ErrSubmissionNotFound
}

func (repo *homeworkRepository) DeleteSubmission(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[id]; !ok {
		return homework.ErrSubmissionNotFound
	}
	delete(repo.db.submissions, id)
	return nil
}

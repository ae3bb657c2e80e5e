package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, number, email string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.students {
		if s.StudentNumber == number {
			return student.ErrNumberExists
		}
		if s.Email == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.students {
		if other.StudentNumber == s.StudentNumber {
			return student.Student{}, student.ErrNumberExists
		}
	}
	s.ID = repo.db.nextPK()
	s.EnrolledCourses = append([]int{}, s.EnrolledCourses...)
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		if filter.Semester != "" && s.Semester != filter.Semester {
			continue
		}
		if filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear {
			continue
		}
		if filter.CourseID != 0 && !s.IsEnrolledIn(filter.CourseID) {
			continue
		}
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentNumber < students[j].StudentNumber })
	start, end := filter.Window(len(students))
	return students[start:end], nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id int, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByNumber(_ context.Context, number string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.students {
		if s.StudentNumber == number {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) ExistingNumbers(_ context.Context, numbers []string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	registered := make(map[string]bool, len(repo.db.students))
	for _, s := range repo.db.students {
		registered[s.StudentNumber] = true
	}
	existing := make([]string, 0)
	for _, n := range numbers {
		if registered[n] {
			existing = append(existing, n)
		}
	}
	return existing, nil
}

func (repo *studentRepository) SetLastLogin(_ context.Context, id int, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.students[id]
	if !ok {
		return student.ErrNotFound
	}
	s.LastLogin = at
	repo.db.students[id] = s
	return nil
}

func (repo *studentRepository) SetEnrollment(_ context.Context, id int, courseIDs []int, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.students[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.EnrolledCourses = append([]int{}, courseIDs...)
	repo.db.students[id] = s
	return s, nil
}

// deleteStudent must be called with mu held. Submissions of the student go with it.
func (repo *studentRepository) deleteStudent(id int) {
	delete(repo.db.students, id)
	for sid, sub := range repo.db.submissions {
		if sub.StudentID == id {
			delete(repo.db.submissions, sid)
		}
	}
}

func (repo *studentRepository) DeleteStudent(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	repo.deleteStudent(id)
	return nil
}

func (repo *studentRepository) DeleteStudentsBySemester(_ context.Context, semester, academicYear string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, s := range repo.db.students {
		if s.Semester == semester && s.AcademicYear == academicYear {
			repo.deleteStudent(id)
			n++
		}
	}
	return n, nil
}

func (repo *studentRepository) CountStudents(_ context.Context, activeOnly bool, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, s := range repo.db.students {
		if !activeOnly || s.IsActive {
			n++
		}
	}
	return n, nil
}

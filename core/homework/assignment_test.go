package homework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClassify(t *testing.T) {
	a := Assignment{
		ID:        1,
		CourseID:  1,
		StartDate: date("2025-01-01T00:00:00Z"),
		DueDate:   date("2025-01-08T00:00:00Z"),
		IsActive:  true,
	}
	suspended := a
	suspended.IsActive = false

	tests := []struct {
		name string
		a    Assignment
		now  time.Time
		want Status
	}{
		{name: "before start", a: a, now: date("2024-12-31T23:59:00Z"), want: StatusUpcoming},
		{name: "at start", a: a, now: a.StartDate, want: StatusActive},
		{name: "mid window", a: a, now: date("2025-01-04T12:00:00Z"), want: StatusActive},
		{name: "at due", a: a, now: a.DueDate, want: StatusActive},
		{name: "after due", a: a, now: date("2025-01-08T00:01:00Z"), want: StatusExpired},
		{name: "one ns after due", a: a, now: a.DueDate.Add(time.Nanosecond), want: StatusExpired},
		{name: "suspended in window", a: suspended, now: date("2025-01-04T12:00:00Z"), want: StatusSuspended},
		{name: "suspended before start", a: suspended, now: date("2024-12-31T00:00:00Z"), want: StatusUpcoming},
		{name: "suspended after due", a: suspended, now: date("2025-02-01T00:00:00Z"), want: StatusExpired},
		{
			name: "other time zone",
			a:    a,
			now:  date("2025-01-08T02:30:00+03:00"), // 2025-01-07T23:30Z
			want: StatusActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.a, tt.now); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotActiveError_Code(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUpcoming, "ASSIGNMENT_UPCOMING"},
		{StatusExpired, "ASSIGNMENT_EXPIRED"},
		{StatusSuspended, "ASSIGNMENT_SUSPENDED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := &NotActiveError{AssignmentID: 1, Status: tt.status}
			assert.Equal(t, tt.want, err.Code())
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestListEligibleAssignments(t *testing.T) {
	now := date("2025-03-10T10:00:00Z")
	as := []Assignment{
		{ID: 1, CourseID: 1, StartDate: now.Add(-48 * time.Hour), DueDate: now.Add(24 * time.Hour), IsActive: true},
		{ID: 2, CourseID: 1, StartDate: now.Add(-48 * time.Hour), DueDate: now.Add(72 * time.Hour), IsActive: true},
		{ID: 3, CourseID: 1, StartDate: now.Add(time.Hour), DueDate: now.Add(72 * time.Hour), IsActive: true},
		{ID: 4, CourseID: 1, StartDate: now.Add(-72 * time.Hour), DueDate: now.Add(-time.Hour), IsActive: true},
		{ID: 5, CourseID: 1, StartDate: now.Add(-48 * time.Hour), DueDate: now.Add(24 * time.Hour), IsActive: false},
		{ID: 6, CourseID: 2, StartDate: now.Add(-48 * time.Hour), DueDate: now.Add(24 * time.Hour), IsActive: true},
	}

	tests := []struct {
		name     string
		courseID int
		wantIDs  []int
	}{
		{name: "course 1", courseID: 1, wantIDs: []int{2, 1}},
		{name: "course 2", courseID: 2, wantIDs: []int{6}},
		{name: "unknown course", courseID: 99, wantIDs: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ListEligibleAssignments(as, tt.courseID, now)
			ids := make([]int, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("empty input", func(t *testing.T) {
		got := ListEligibleAssignments(nil, 1, now)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestAggregateActiveCounts(t *testing.T) {
	now := date("2025-03-10T10:00:00Z")
	active := func(id, courseID int) Assignment {
		return Assignment{ID: id, CourseID: courseID, StartDate: now.Add(-time.Hour), DueDate: now.Add(time.Hour), IsActive: true}
	}
	expired := Assignment{ID: 10, CourseID: 3, StartDate: now.Add(-2 * time.Hour), DueDate: now.Add(-time.Hour), IsActive: true}
	suspended := active(11, 4)
	suspended.IsActive = false

	got := AggregateActiveCounts([]Assignment{active(1, 1), active(2, 1), active(3, 2), expired, suspended}, now)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, got)

	_, ok := got[3]
	assert.False(t, ok, "courses without active assignments are absent")
	assert.Empty(t, AggregateActiveCounts(nil, now))
}

func TestUpdateAssignment_apply(t *testing.T) {
	a := Assignment{ID: 1, CourseID: 1, Title: "HW1", StartDate: date("2025-01-01T00:00:00Z"), DueDate: date("2025-01-08T00:00:00Z"), IsActive: true}
	due := date("2025-01-10T00:00:00+03:00")
	inactive := false

	got := UpdateAssignment{DueDate: &due, IsActive: &inactive}.apply(a)
	assert.Equal(t, "HW1", got.Title)
	assert.Equal(t, due.UTC(), got.DueDate)
	assert.False(t, got.IsActive)
	assert.NoError(t, checkWindow(got.StartDate, got.DueDate))

	start := date("2025-01-10T00:00:00Z")
	got = UpdateAssignment{StartDate: &start}.apply(a)
	assert.Error(t, checkWindow(got.StartDate, got.DueDate))
	assert.Error(t, checkWindow(a.StartDate, a.StartDate), "empty window")
}

func TestPairLocks(t *testing.T) {
	l := newPairLocks()
	unlock := l.lock(1, 1)
	unlock2 := l.lock(1, 2)
	assert.Equal(t, 2, l.len())

	done := make(chan struct{})
	go func() {
		u := l.lock(1, 1)
		u()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock on the same pair did not block")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	unlock2()
	assert.Equal(t, 0, l.len())
}

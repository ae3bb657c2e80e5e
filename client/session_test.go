package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/bbolt"
)

func loggedIn(t *testing.T, admin, student bool) *Session {
	t.Helper()
	s := NewSession(NewMemoryStore())
	if admin {
		if err := s.SetToken(NamespaceAdmin, "admin-token", &Identity{Role: "admin", Username: "hoca"}); err != nil {
			t.Fatal(err)
		}
	}
	if student {
		if err := s.SetToken(NamespaceStudent, "student-token", &Identity{Role: "student", Number: "2012345678"}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name      string
		admin     bool
		student   bool
		wantToken string
		wantNS    Namespace
		wantOK    bool
	}{
		{name: "none"},
		{name: "admin only", admin: true, wantToken: "admin-token", wantNS: NamespaceAdmin, wantOK: true},
		{name: "student only", student: true, wantToken: "student-token", wantNS: NamespaceStudent, wantOK: true},
		{name: "both prefers student", admin: true, student: true, wantToken: "student-token", wantNS: NamespaceStudent, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loggedIn(t, tt.admin, tt.student)
			token, ns, ok, err := s.ResolveToken()
			assert.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantNS, ns)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestOnUnauthorized(t *testing.T) {
	tests := []struct {
		name         string
		admin        bool
		student      bool
		wantRedirect string
		wantAdmin    bool
		wantStudent  bool
	}{
		{name: "no tokens is a no-op"},
		{name: "admin", admin: true, wantRedirect: "/admin"},
		{name: "student", student: true, wantRedirect: "/student-login"},
		{name: "both clears student only", admin: true, student: true, wantRedirect: "/student-login", wantAdmin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loggedIn(t, tt.admin, tt.student)
			redirect, err := s.OnUnauthorized()
			assert.NoError(t, err)
			assert.Equal(t, tt.wantRedirect, redirect)
			assert.Equal(t, tt.wantAdmin, s.LoggedIn(NamespaceAdmin))
			assert.Equal(t, tt.wantStudent, s.LoggedIn(NamespaceStudent))
		})
	}

	t.Run("second failure falls back to admin", func(t *testing.T) {
		s := loggedIn(t, true, true)
		first, _ := s.OnUnauthorized()
		second, _ := s.OnUnauthorized()
		third, _ := s.OnUnauthorized()
		assert.Equal(t, []string{"/student-login", "/admin", ""}, []string{first, second, third})
	})
}

func TestClearToken(t *testing.T) {
	s := loggedIn(t, true, true)

	assert.NoError(t, s.ClearToken(NamespaceStudent))
	assert.NoError(t, s.ClearToken(NamespaceStudent)) // idempotent

	_, ok, err := s.Credentials(NamespaceStudent)
	assert.NoError(t, err)
	assert.False(t, ok)

	creds, ok, err := s.Credentials(NamespaceAdmin)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin-token", creds.Token)
	assert.Equal(t, "hoca", creds.Identity.Username)

	assert.Equal(t, ErrInvalidNamespace, s.ClearToken("guest"))
	assert.Equal(t, ErrInvalidNamespace, s.SetToken("guest", "x", nil))
	assert.Error(t, s.SetToken(NamespaceAdmin, "", nil))
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "session.db")

	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession(store)
	assert.NoError(t, s.SetToken(NamespaceStudent, "student-token", &Identity{Role: "student", Number: "2012345678", CourseIDs: []int{1, 2}}))
	assert.NoError(t, s.SetToken(NamespaceAdmin, "admin-token", nil))
	assert.NoError(t, s.ClearToken(NamespaceAdmin))
	assert.NoError(t, store.Close())

	// reopen: the student slot survived, the cleared admin slot did not
	store, err = OpenBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	s = NewSession(store)

	creds, ok, err := s.Credentials(NamespaceStudent)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "student-token", creds.Token)
	assert.Equal(t, []int{1, 2}, creds.Identity.CourseIDs)
	assert.False(t, s.LoggedIn(NamespaceAdmin))

	redirect, err := s.OnUnauthorized()
	assert.NoError(t, err)
	assert.Equal(t, StudentLoginPath, redirect)
	assert.False(t, s.LoggedIn(NamespaceStudent))
}

func TestBoltStore_unreadableSlot(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	s := NewSession(store)
	assert.NoError(t, s.SetToken(NamespaceAdmin, "admin-token", nil))

	err = store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(NamespaceStudent), []byte("{not json"))
	})
	if err != nil {
		t.Fatal(err)
	}

	// the damaged student slot reads as logged out and the admin token resolves
	token, ns, ok, err := s.ResolveToken()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, NamespaceAdmin, ns)
	assert.Equal(t, "admin-token", token)

	err = store.db.View(func(tx *bbolt.Tx) error {
		assert.Nil(t, tx.Bucket(sessionBucket).Get([]byte(NamespaceStudent)))
		return nil
	})
	assert.NoError(t, err)

	redirect, err := s.OnUnauthorized()
	assert.NoError(t, err)
	assert.Equal(t, AdminLoginPath, redirect)
	assert.False(t, s.LoggedIn(NamespaceAdmin))

	// the slot is usable again
	assert.NoError(t, s.SetToken(NamespaceStudent, "student-token", nil))
	assert.True(t, s.LoggedIn(NamespaceStudent))
}

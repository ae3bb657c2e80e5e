// Package client is the Go API client of the department website. It keeps two independent
// credential slots (admin and student) and talks to the API with whichever one is resolved.
package client

import (
	"sync"

	"github.com/pkg/errors"
)

type Namespace string

const (
	NamespaceAdmin   Namespace = "admin"
	NamespaceStudent Namespace = "student"
)

// login surfaces to redirect to once a namespace lost its credentials
const (
	AdminLoginPath   = "/admin"
	StudentLoginPath = "/student-login"
)

// resolveOrder is the token precedence: an ambiguous login state favors the student identity.
var resolveOrder = []Namespace{NamespaceStudent, NamespaceAdmin}

func (ns Namespace) Valid() bool {
	return ns == NamespaceAdmin || ns == NamespaceStudent
}

// LoginPath is the login surface of the namespace.
func (ns Namespace) LoginPath() string {
	if ns == NamespaceStudent {
		return StudentLoginPath
	}
	return AdminLoginPath
}

// Identity is what the client remembers about the account behind a token.
type Identity struct {
	Role        string   `json:"role"`
	ID          int      `json:"id"`
	Username    string   `json:"username,omitempty"`       // admins
	Number      string   `json:"student_number,omitempty"` // students
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	CourseIDs   []int    `json:"course_ids,omitempty"`
}

// Credentials fill one namespace slot.
type Credentials struct {
	Token    string    `json:"token"`
	Identity *Identity `json:"identity,omitempty"`
}

// TokenStore persists the namespace slots. Load reports ok=false for an empty slot.
type TokenStore interface {
	Load(ns Namespace) (creds Credentials, ok bool, err error)
	Save(ns Namespace, creds Credentials) error
	Delete(ns Namespace) error
}

var ErrInvalidNamespace = errors.New("invalid session namespace")

// Session is the only way to read or change the stored credentials. It is safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	store TokenStore
}

func NewSession(store TokenStore) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// SetToken logs the namespace in.
func (s *Session) SetToken(ns Namespace, token string, identity *Identity) error {
	if !ns.Valid() {
		return ErrInvalidNamespace
	}
	if token == "" {
		return errors.New("empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrapf(s.store.Save(ns, Credentials{Token: token, Identity: identity}), "saving %s token", ns)
}

// ClearToken logs the namespace out. The token and the cached identity are always both removed,
// even when the slot is already empty.
func (s *Session) ClearToken(ns Namespace) error {
	if !ns.Valid() {
		return ErrInvalidNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrapf(s.store.Delete(ns), "clearing %s token", ns)
}

func (s *Session) Credentials(ns Namespace) (Credentials, bool, error) {
	if !ns.Valid() {
		return Credentials{}, false, ErrInvalidNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ns)
}

func (s *Session) load(ns Namespace) (Credentials, bool, error) {
	creds, ok, err := s.store.Load(ns)
	if err != nil {
		return Credentials{}, false, errors.Wrapf(err, "loading %s token", ns)
	}
	if !ok || creds.Token == "" {
		return Credentials{}, false, nil
	}
	return creds, true, nil
}

func (s *Session) LoggedIn(ns Namespace) bool {
	_, ok, err := s.Credentials(ns)
	return err == nil && ok
}

// ResolveToken picks the token to send: the student token when present, the admin token otherwise.
// ok is false when both namespaces are logged out.
func (s *Session) ResolveToken() (token string, ns Namespace, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range resolveOrder {
		creds, ok, err := s.load(ns)
		if err != nil {
			return "", "", false, err
		}
		if ok {
			return creds.Token, ns, true, nil
		}
	}
	return "", "", false, nil
}

// OnUnauthorized reacts to an authorization failure: it clears exactly the namespace that held a
// token (checked in ResolveToken order) and returns its login path. With no token set nothing is
// cleared and redirect is empty, so a 401 of a public endpoint never causes a redirect loop.
func (s *Session) OnUnauthorized() (redirect string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range resolveOrder {
		_, ok, err := s.load(ns)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if err = s.store.Delete(ns); err != nil {
			return "", errors.Wrapf(err, "clearing %s token", ns)
		}
		return ns.LoginPath(), nil
	}
	return "", nil
}

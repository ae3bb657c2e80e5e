// Package inmemdb implements the core repositories in memory, for tests and local runs without postgres.
package inmemdb

import (
	"context"
	"sync"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/site"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/user"
)

type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	pk   int

	users         map[int]user.User
	courses       map[int]course.Course
	students      map[int]student.Student
	assignments   map[int]homework.Assignment
	submissions   map[int]homework.Submission
	announcements map[int]site.Announcement
	publications  map[int]site.Publication
	gallery       map[int]site.GalleryItem
	cv            *site.CV
}

func Open() *DB {
	return &DB{
		users:         make(map[int]user.User),
		courses:       make(map[int]course.Course),
		students:      make(map[int]student.Student),
		assignments:   make(map[int]homework.Assignment),
		submissions:   make(map[int]homework.Submission),
		announcements: make(map[int]site.Announcement),
		publications:  make(map[int]site.Publication),
		gallery:       make(map[int]site.GalleryItem),
	}
}

// nextPK must be called with mu held.
func (db *DB) nextPK() int {
	db.pk++
	return db.pk
}

// Transactor serialises transactions. Writes made before a failing step are not rolled back.
func (db *DB) Transactor() core.Transactor {
	return txRunner{db: db}
}

type txRunner struct {
	db *DB
}

func (r txRunner) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	return fn(nil)
}


package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ibca/academic/core"
)

const baseURL = "http://localhost:8000/api/files"

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "pdf/notes.pdf", want: "pdf/notes.pdf"},
		{key: "image/a_1f2e.png", want: "image/a_1f2e.png"},
		{key: "notes.pdf", wantErr: true},
		{key: "pdf/../../etc/passwd", wantErr: true},
		{key: "../notes.pdf", wantErr: true},
		{key: "pdf/", wantErr: true},
		{key: `pdf/a\b.pdf`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyFor(t *testing.T) {
	key, ok := keyFor(baseURL, baseURL+"/pdf/notes.pdf")
	assert.True(t, ok)
	assert.Equal(t, "pdf/notes.pdf", key)

	_, ok = keyFor(baseURL, "https://elsewhere.example/pdf/notes.pdf")
	assert.False(t, ok)

	_, ok = keyFor(baseURL, baseURL+"/pdf/../secret")
	assert.False(t, ok)
}

func testStore(t *testing.T, store core.FileStore) {
	ctx := context.Background()

	url, err := store.Save(ctx, "pdf/notes.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
	assert.NoError(t, err)
	assert.Equal(t, baseURL+"/pdf/notes.pdf", url)

	key, ok := store.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "pdf/notes.pdf", key)

	rc, err := store.Open(ctx, key)
	if assert.NoError(t, err) {
		b, _ := io.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, "%PDF-1.4", string(b))
	}

	// overwrite
	_, err = store.Save(ctx, key, strings.NewReader("%PDF-1.7"), "application/pdf")
	assert.NoError(t, err)
	rc, err = store.Open(ctx, key)
	if assert.NoError(t, err) {
		b, _ := io.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, "%PDF-1.7", string(b))
	}

	assert.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.Equal(t, core.ErrFileNotFound, errors.Cause(err))
	assert.Equal(t, core.ErrFileNotFound, errors.Cause(store.Delete(ctx, key)))

	_, err = store.Save(ctx, "../escape.pdf", strings.NewReader("x"), "application/pdf")
	assert.Error(t, err)
}

func TestDiskStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, baseURL)
	if !assert.NoError(t, err) {
		return
	}
	testStore(t, store)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "pdf"))
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore(baseURL))
}

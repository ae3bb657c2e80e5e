// Package filestore holds the core.FileStore backends: local disk, Backblaze B2 and memory.
package filestore

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

var errInvalidKey = errors.New("invalid file key")

// cleanKey accepts only "<kind>/<name>" keys and rejects anything that would escape the kind directory.
func cleanKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return "", errors.Wrap(errInvalidKey, key)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\`) {
			return "", errors.Wrap(errInvalidKey, key)
		}
	}
	return path.Join(parts[0], parts[1]), nil
}

// urlFor and keyFor map keys to public URLs served by GET <baseURL>/<kind>/<name>.
func urlFor(baseURL, key string) string {
	return baseURL + "/" + key
}

func keyFor(baseURL, url string) (string, bool) {
	prefix := baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := cleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Package upload decides whether a file may be accepted before any byte of it is stored.
// The same Validate runs in the API client (advisory, for fast feedback) and on the server (authoritative).
package upload

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ibca/academic/core"
)

type Code string

const (
	CodeWrongType Code = "WRONG_TYPE"
	CodeTooLarge  Code = "TOO_LARGE"
)

const (
	HomeworkPolicyName = "homework"
	PDFPolicyName      = "pdf"
	ImagePolicyName    = "image"
)

var (
	DefaultHomeworkPolicy = Policy{Name: HomeworkPolicyName, MaxBytes: 3 << 20, AllowedTypes: []string{"application/pdf"}}
	DefaultPDFPolicy      = Policy{Name: PDFPolicyName, MaxBytes: 10 << 20, AllowedTypes: []string{"application/pdf"}}
	DefaultImagePolicy    = Policy{
		Name:         ImagePolicyName,
		MaxBytes:     5 << 20,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
	}
)

type (
	// Policy is the acceptance rule for one kind of upload.
	Policy struct {
		Name         string   `json:"name"`
		MaxBytes     int64    `json:"max_bytes"`
		AllowedTypes []string `json:"allowed_types"`
	}

	// Policies groups the named policies served to clients.
	Policies struct {
		Homework Policy `json:"homework"`
		PDF      Policy `json:"pdf"`
		Image    Policy `json:"image"`
	}

	// FileInfo is what is known about a file before reading its content.
	FileInfo struct {
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}

	// File is an upload candidate with its content.
	File struct {
		FileInfo
		Reader io.Reader
	}

	// RejectionError is a client-correctable reason for refusing a file.
	RejectionError struct {
		Code   Code
		Policy Policy
		File   FileInfo
	}
)

func (e *RejectionError) Error() string {
	switch e.Code {
	case CodeWrongType:
		return fmt.Sprintf("file type %q is not accepted; allowed types: %s",
			e.File.DeclaredType(), strings.Join(e.Policy.AllowedTypes, ", "))
	case CodeTooLarge:
		return fmt.Sprintf("file is %s; the limit is %s", humanSize(e.File.Size), humanSize(e.Policy.MaxBytes))
	}
	return "file rejected"
}

// PoliciesFromConfig builds the named policies, falling back to the defaults for unset values.
func PoliciesFromConfig(conf core.UploadConfig) Policies {
	pick := func(def Policy, max int64, types []string) Policy {
		p := def
		if max > 0 {
			p.MaxBytes = max
		}
		if len(types) > 0 {
			p.AllowedTypes = types
		}
		return p
	}
	return Policies{
		Homework: pick(DefaultHomeworkPolicy, conf.HomeworkMaxBytes, conf.HomeworkTypes),
		PDF:      pick(DefaultPDFPolicy, conf.PDFMaxBytes, nil),
		Image:    pick(DefaultImagePolicy, conf.ImageMaxBytes, conf.ImageTypes),
	}
}

// Validate checks the declared type first, then the size. A file exactly at MaxBytes is accepted.
func Validate(file FileInfo, policy Policy) error {
	if !policy.AllowsType(file.DeclaredType()) {
		return &RejectionError{Code: CodeWrongType, Policy: policy, File: file}
	}
	if file.Size > policy.MaxBytes {
		return &RejectionError{Code: CodeTooLarge, Policy: policy, File: file}
	}
	return nil
}

func (p Policy) AllowsType(contentType string) bool {
	ct := normalizeType(contentType)
	if ct == "" {
		return false
	}
	for _, allowed := range p.AllowedTypes {
		if normalizeType(allowed) == ct {
			return true
		}
	}
	return false
}

// Extension returns the file extension stored files of this type get.
func (p Policy) Extension(contentType string) string {
	switch normalizeType(contentType) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// DeclaredType is the declared MIME type, or the one implied by the file extension when none was declared.
func (f FileInfo) DeclaredType() string {
	if ct := normalizeType(f.ContentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return normalizeType(mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))))
}

func normalizeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func humanSize(n int64) string {
	const unit = 1 << 10
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

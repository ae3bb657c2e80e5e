package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/upload"
)

// ValidateUpload runs the acceptance rules locally before anything is sent. The server applies
// the same rules again; a nil error here is not a promise of acceptance.
func ValidateUpload(file upload.FileInfo, policy upload.Policy) error {
	return upload.Validate(file, policy)
}

// FileFromPath opens a local file as an upload candidate. Its type is guessed from the extension.
// The caller closes the returned file.
func FileFromPath(path string) (upload.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.File{}, nil, errors.Wrap(err, "opening file")
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return upload.File{}, nil, errors.Wrap(err, "reading file info")
	}
	if stat.IsDir() {
		_ = f.Close()
		return upload.File{}, nil, errors.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	return upload.File{
		FileInfo: upload.FileInfo{
			Name:        name,
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
			Size:        stat.Size(),
		},
		Reader: f,
	}, f, nil
}

// SubmissionForm is a homework upload.
type SubmissionForm struct {
	StudentNumber string
	StudentName   string
	CourseID      int
	AssignmentID  int
	Notes         string
	File          upload.File
}

// Submit uploads a homework. The file is checked against policy first and a rejected file
// never reaches the network.
func (c *Client) Submit(ctx context.Context, form SubmissionForm, policy upload.Policy) (homework.Submission, error) {
	if err := ValidateUpload(form.File.FileInfo, policy); err != nil {
		return homework.Submission{}, err
	}

	body, contentType, err := encodeSubmission(form)
	if err != nil {
		return homework.Submission{}, err
	}

	var sub homework.Submission
	req := request{method: rest.Post, path: "/homeworks", raw: body, contentType: contentType}
	if err = c.do(ctx, req, &sub); err != nil {
		return homework.Submission{}, err
	}
	return sub, nil
}

func encodeSubmission(form SubmissionForm) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"student_number", form.StudentNumber},
		{"student_name", form.StudentName},
		{"course_id", strconv.Itoa(form.CourseID)},
		{"assignment_id", strconv.Itoa(form.AssignmentID)},
		{"notes", form.Notes},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrap(err, "writing form field")
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(form.File.Name)))
	h.Set("Content-Type", form.File.DeclaredType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "creating file part")
	}
	if form.File.Reader != nil {
		if _, err = io.Copy(part, form.File.Reader); err != nil {
			return nil, "", errors.Wrap(err, "copying file")
		}
	}
	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing form")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

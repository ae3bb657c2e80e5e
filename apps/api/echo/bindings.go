package echoapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/upload"
)

var (
	orderingParam = "ordering"
	fileField     = "file"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryBool parses an optional boolean query param.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a boolean"})
	}
	return &b, nil
}

// queryInt parses an optional integer query param; 0 when absent.
func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return n, nil
}

// paramID parses the :id path param. Malformed IDs are reported as not found.
func paramID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// formFile opens the uploaded multipart file. The caller closes it.
func formFile(ctx echo.Context) (upload.File, io.Closer, error) {
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return upload.File{}, nil, errMissingFile
		}
		return upload.File{}, nil, errors.Wrap(err, "reading multipart form")
	}
	f, err := fh.Open()
	if err != nil {
		return upload.File{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	return upload.File{
		FileInfo: upload.FileInfo{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
		},
		Reader: f,
	}, f, nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	URLResponse struct {
		URL string `json:"url"`
	}
)

package echoapi

import (
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core"
)

var fileKinds = map[string]bool{"pdf": true, "image": true}

type fileApi struct {
	files core.FileStore
}

// registerFileAPI serves the stored uploads at the URLs the file store hands out.
func registerFileAPI(g *echo.Group, deps ServerDeps) {
	api := fileApi{files: deps.Files}
	g.GET("/files/:kind/:name", api.serve)
}

func (api *fileApi) serve(ctx echo.Context) error {
	kind, name := ctx.Param("kind"), ctx.Param("name")
	if !fileKinds[kind] {
		return errHttpNotFound
	}

	rc, err := api.files.Open(requestContext(ctx), path.Join(kind, name))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return core.NewStorageError("open", errors.Wrap(err, "opening stored file"))
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, ct, rc)
}

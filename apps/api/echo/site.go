package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ibca/academic/core/site"
	"github.com/ibca/academic/core/upload"
)

type siteApi struct {
	svc      *site.Service
	validate *validator.Validate
	policies upload.Policies
}

func registerSiteAPI(g *echo.Group, jwt echo.MiddlewareFunc, optAuth echo.MiddlewareFunc, deps ServerDeps) {
	api := siteApi{
		svc:      deps.SiteSvc,
		validate: deps.Validate,
		policies: deps.Policies,
	}
	admin := adminMiddleware()

	ag := g.Group("/announcements")
	ag.GET("", api.queryAnnouncements, optAuth)
	ag.GET("/:id", api.viewAnnouncement)
	ag.POST("", api.createAnnouncement, jwt, admin)
	ag.POST("/upload-image", api.uploadFile(api.policies.Image), jwt, admin)
	ag.PUT("/:id", api.updateAnnouncement, jwt, admin)
	ag.DELETE("/:id", api.destroyAnnouncement, jwt, admin)

	pg := g.Group("/publications")
	pg.GET("", api.queryPublications, optAuth)
	pg.GET("/:id", api.retrievePublication)
	pg.POST("", api.createPublication, jwt, admin)
	pg.POST("/upload-pdf", api.uploadFile(api.policies.PDF), jwt, admin)
	pg.PUT("/:id", api.updatePublication, jwt, admin)
	pg.DELETE("/:id", api.destroyPublication, jwt, admin)

	gg := g.Group("/gallery")
	gg.GET("", api.queryGallery, optAuth)
	gg.POST("", api.createGalleryItem, jwt, admin)
	gg.POST("/upload-photo", api.uploadFile(api.policies.Image), jwt, admin)
	gg.DELETE("/:id", api.destroyGalleryItem, jwt, admin)

	cg := g.Group("/cv")
	cg.GET("", api.getCV)
	cg.POST("", api.createCV, jwt, admin)
	cg.PUT("", api.saveCV, jwt, admin)
	cg.POST("/upload-pdf", api.uploadCVFile(api.policies.PDF), jwt, admin)
	cg.POST("/upload-photo", api.uploadCVFile(api.policies.Image), jwt, admin)

	g.POST("/analytics/visits", api.recordVisit)
	g.GET("/analytics", api.stats, jwt, admin)
}

// bindFilter binds the type/skip/limit query params; admins also see unpublished content.
func bindFilter(ctx echo.Context) (site.Filter, error) {
	var filter site.Filter
	if err := ctx.Bind(&filter); err != nil {
		return site.Filter{}, errors.Wrap(err, "binding to Filter")
	}
	if claims, err := getContextClaims(ctx); err == nil && claims.IsAdmin() {
		filter.IncludeUnpublished = true
	}
	return filter, nil
}

// Announcements

func (api *siteApi) queryAnnouncements(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	as, err := api.svc.QueryAnnouncements(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if as == nil {
		as = []site.Announcement{}
	}
	return ctx.JSON(http.StatusOK, as)
}

func (api *siteApi) viewAnnouncement(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.ViewAnnouncement(requestContext(ctx), id)
	if err != nil {
		return errors.Wrap(err, "viewing announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *siteApi) createAnnouncement(ctx echo.Context) error {
	var data site.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAnnouncement(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *siteApi) updateAnnouncement(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data site.UpdateAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.UpdateAnnouncement(requestContext(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *siteApi) destroyAnnouncement(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAnnouncement(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Publications

func (api *siteApi) queryPublications(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	ps, err := api.svc.QueryPublications(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying publications")
	}
	if ps == nil {
		ps = []site.Publication{}
	}
	return ctx.JSON(http.StatusOK, ps)
}

func (api *siteApi) retrievePublication(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetPublication(requestContext(ctx), id)
	if err != nil {
		return errors.Wrap(err, "getting publication")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *siteApi) createPublication(ctx echo.Context) error {
	var data site.NewPublication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPublication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreatePublication(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating publication")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *siteApi) updatePublication(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data site.UpdatePublication
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePublication")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePublication(requestContext(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating publication")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *siteApi) destroyPublication(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePublication(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Gallery

func (api *siteApi) queryGallery(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	items, err := api.svc.QueryGalleryItems(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying gallery")
	}
	if items == nil {
		items = []site.GalleryItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *siteApi) createGalleryItem(ctx echo.Context) error {
	var data site.NewGalleryItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGalleryItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateGalleryItem(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating gallery item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *siteApi) destroyGalleryItem(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteGalleryItem(requestContext(ctx), id); err != nil {
		return errors.Wrap(err, "deleting gallery item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CV

// getCV answers with a list of zero or one cv.
func (api *siteApi) getCV(ctx echo.Context) error {
	cv, err := api.svc.GetCV(requestContext(ctx))
	if err != nil {
		if errors.Cause(err) == site.ErrCVNotFound {
			return ctx.JSON(http.StatusOK, []site.CV{})
		}
		return errors.Wrap(err, "getting cv")
	}
	return ctx.JSON(http.StatusOK, []site.CV{cv})
}

func (api *siteApi) createCV(ctx echo.Context) error {
	var data site.CVInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CVInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cv, err := api.svc.CreateCV(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating cv")
	}
	return ctx.JSON(http.StatusCreated, cv)
}

func (api *siteApi) saveCV(ctx echo.Context) error {
	var data site.CVInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CVInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cv, err := api.svc.SaveCV(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "saving cv")
	}
	return ctx.JSON(http.StatusOK, cv)
}

// Uploads

func (api *siteApi) uploadFile(policy upload.Policy) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		file, closer, err := formFile(ctx)
		if err != nil {
			return err
		}
		defer closer.Close()

		url, err := api.svc.StoreFile(requestContext(ctx), file, policy)
		if err != nil {
			return errors.Wrap(err, "storing "+policy.Name+" file")
		}
		return ctx.JSON(http.StatusCreated, URLResponse{URL: url})
	}
}

func (api *siteApi) uploadCVFile(policy upload.Policy) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		file, closer, err := formFile(ctx)
		if err != nil {
			return err
		}
		defer closer.Close()

		cv, err := api.svc.UploadCVFile(requestContext(ctx), file, policy)
		if err != nil {
			return errors.Wrap(err, "uploading cv "+policy.Name)
		}
		return ctx.JSON(http.StatusOK, cv)
	}
}

// Analytics

type VisitRequest struct {
	VisitorID string `json:"visitor_id" validate:"max=100"`
}

func (api *siteApi) recordVisit(ctx echo.Context) error {
	var data VisitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VisitRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	if err := api.svc.RecordVisit(requestContext(ctx), data.VisitorID); err != nil {
		return errors.Wrap(err, "recording visit")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *siteApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(requestContext(ctx))
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

package blobstore

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/labstack/echo/v4"
)

// Handler serves object reads under /storage/v1. Signed reads need a valid
// token; public reads are limited to public buckets.
type Handler struct {
	store  ObjectStore
	signer *Signer
}

func NewHandler(store ObjectStore, signer *Signer) *Handler {
	return &Handler{store: store, signer: signer}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/object/sign/:bucket/*", h.handleSigned)
	g.GET("/object/public/:bucket/*", h.handlePublic)
}

func objectParams(c echo.Context) (string, string, error) {
	bucket := c.Param("bucket")
	raw, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "invalid object path")
	}
	p, err := CleanPath(raw)
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return bucket, p, nil
}

func (h *Handler) handleSigned(c echo.Context) error {
	bucket, p, err := objectParams(c)
	if err != nil {
		return err
	}
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	if err := h.signer.Verify(token, bucket, p); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return h.stream(c, bucket, p)
}

func (h *Handler) handlePublic(c echo.Context) error {
	bucket, p, err := objectParams(c)
	if err != nil {
		return err
	}
	b, err := LookupBucket(bucket)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if !b.Public {
		return echo.NewHTTPError(http.StatusForbidden, "bucket is not public")
	}
	return h.stream(c, bucket, p)
}

func (h *Handler) stream(c echo.Context, bucket, p string) error {
	rc, meta, err := h.store.Get(c.Request().Context(), bucket, p)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": path.Base(meta.Path)}))
	c.Response().Header().Set("ETag", `"`+meta.SHA256+`"`)
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

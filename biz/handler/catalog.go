package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/lumenforge/hdriatlas/biz/service"
	"github.com/lumenforge/hdriatlas/pkg/common"
)

// CatalogHandler exposes the asset catalog over HTTP.
type CatalogHandler struct {
	service *service.Service
}

func NewCatalogHandler(svc *service.Service) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// IngestAssets handles multipart uploads. One or more files may be sent
// under the "file" field; each is ingested independently and reported in
// the batch result. An optional "name" field applies to single uploads.
func (h *CatalogHandler) IngestAssets(ctx context.Context, c *app.RequestContext) {
	form, err := c.MultipartForm()
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		writeBadRequest(c, errors.New("no file in upload"))
		return
	}
	name := strings.TrimSpace(string(c.FormValue("name")))
	if name != "" && len(files) > 1 {
		writeBadRequest(c, errors.New("name only applies to single uploads"))
		return
	}

	inputs := make([]service.IngestInput, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeBadRequest(c, err)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeInternalError(c, err)
			return
		}
		inputs = append(inputs, service.IngestInput{
			Name:     name,
			FileName: fh.Filename,
			Data:     data,
		})
	}

	if len(inputs) == 1 {
		asset, err := h.service.IngestAsset(ctx, inputs[0])
		if err != nil {
			var dup *service.DuplicateError
			if errors.As(err, &dup) {
				writeConflict(c, err, map[string]any{"existing": dup.Existing})
				return
			}
			writeBadRequest(c, err)
			return
		}
		writeOK(c, map[string]any{"asset": asset})
		return
	}

	results := h.service.IngestBatch(ctx, inputs)
	writeOK(c, map[string]any{"results": results})
}

// ListAssets lists completed assets. Query parameters:
//
//	name  - substring filter on display name
//	tags  - comma separated tag names that must all be set
//	sort  - "name" (default) or "upload_date"
//	order - "asc" (default) or "desc"
func (h *CatalogHandler) ListAssets(ctx context.Context, c *app.RequestContext) {
	params := service.ListParams{
		NameContains: strings.TrimSpace(c.Query("name")),
		SortBy:       strings.TrimSpace(c.Query("sort")),
	}
	switch strings.ToLower(strings.TrimSpace(c.Query("order"))) {
	case "", "asc":
	case "desc":
		params.Descending = true
	default:
		writeBadRequest(c, errors.New("order must be asc or desc"))
		return
	}
	if raw := strings.TrimSpace(c.Query("tags")); raw != "" {
		params.Tags = map[string]bool{}
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				params.Tags[part] = true
			}
		}
	}

	assets, err := h.service.ListAssets(ctx, params)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	writeOK(c, map[string]any{"assets": assets})
}

// GetAsset returns a single asset with its tag values.
func (h *CatalogHandler) GetAsset(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(ctx, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	writeOK(c, map[string]any{"asset": asset})
}

// RenameAsset updates the display name of an asset.
func (h *CatalogHandler) RenameAsset(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BindAndValidate(&body); err != nil {
		writeBadRequest(c, err)
		return
	}
	asset, err := h.service.RenameAsset(ctx, id, strings.TrimSpace(body.Name))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	writeOK(c, map[string]any{"asset": asset})
}

// SetAssetTags assigns tag values on an asset. Body: {"tags": {"Outdoor": true}}.
func (h *CatalogHandler) SetAssetTags(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	var body struct {
		Tags map[string]bool `json:"tags"`
	}
	if err := c.BindAndValidate(&body); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.service.SetAssetTags(ctx, id, body.Tags); err != nil {
		h.writeServiceError(c, err)
		return
	}
	asset, err := h.service.GetAsset(ctx, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	writeOK(c, map[string]any{"asset": asset})
}

// DeleteAsset removes an asset and its materialized files.
func (h *CatalogHandler) DeleteAsset(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAsset(ctx, id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, common.CommonResponse{Code: consts.StatusOK})
}

// GetAssetFile streams the stored original back to the client.
func (h *CatalogHandler) GetAssetFile(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	rc, fileName, err := h.service.OpenAssetFile(ctx, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.Response.Header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	c.Data(consts.StatusOK, consts.MIMEApplicationOctetStream, content)
}

// GetAssetPreview streams the JPEG preview back to the client.
func (h *CatalogHandler) GetAssetPreview(ctx context.Context, c *app.RequestContext) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	rc, err := h.service.OpenAssetPreview(ctx, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		writeInternalError(c, err)
		return
	}
	c.Data(consts.StatusOK, "image/jpeg", content)
}

// CompareAssets reports the Hamming distance between two assets' fingerprints.
func (h *CatalogHandler) CompareAssets(ctx context.Context, c *app.RequestContext) {
	idA, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeBadRequest(c, errors.New("invalid asset id"))
		return
	}
	idB, err := strconv.ParseUint(c.Param("other"), 10, 64)
	if err != nil {
		writeBadRequest(c, errors.New("invalid asset id"))
		return
	}
	distance, err := h.service.CompareAssets(ctx, idA, idB)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	writeOK(c, map[string]any{"distance": distance})
}

// ListTags returns every tag in the catalog schema.
func (h *CatalogHandler) ListTags(ctx context.Context, c *app.RequestContext) {
	tags, err := h.service.ListTags(ctx)
	if err != nil {
		writeInternalError(c, err)
		return
	}
	writeOK(c, map[string]any{"tags": tags})
}

// AddTag creates a tag. Body: {"name": "Studio Light"}.
func (h *CatalogHandler) AddTag(ctx context.Context, c *app.RequestContext) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BindAndValidate(&body); err != nil {
		writeBadRequest(c, err)
		return
	}
	tag, err := h.service.AddTag(ctx, body.Name)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	writeOK(c, map[string]any{"tag": tag})
}

// RemoveTag drops a tag and its values from every asset.
func (h *CatalogHandler) RemoveTag(ctx context.Context, c *app.RequestContext) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		writeBadRequest(c, errors.New("tag name is required"))
		return
	}
	if err := h.service.RemoveTag(ctx, name); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(consts.StatusOK, common.CommonResponse{Code: consts.StatusOK})
}

func (h *CatalogHandler) writeServiceError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, service.ErrAssetNotFound), errors.Is(err, service.ErrTagNotFound):
		writeNotFound(c, err)
	default:
		writeInternalError(c, err)
	}
}

func parseAssetID(c *app.RequestContext) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeBadRequest(c, errors.New("invalid asset id"))
		return 0, false
	}
	return id, true
}

package consumer

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/models"
	"github.com/giobyte8/thumbforge/internal/services"
	"github.com/giobyte8/thumbforge/internal/telemetry"
	"github.com/giobyte8/thumbforge/internal/telemetry/metrics"
)

// ThumbRequestHandler turns thumbnail requests into calls to the
// thumbnails service.
type ThumbRequestHandler struct {
	thumbnails *services.ThumbnailsService
	presets    models.Presets
	telemetry  *telemetry.TelemetrySvc
}

func NewThumbRequestHandler(
	thumbnails *services.ThumbnailsService,
	presets models.Presets,
	telemetry *telemetry.TelemetrySvc,
) *ThumbRequestHandler {
	if presets == nil {
		presets = models.Presets{}
	}

	return &ThumbRequestHandler{
		thumbnails: thumbnails,
		presets:    presets,
		telemetry:  telemetry,
	}
}

// ProcessGenRequest creates the requested thumbnail. A failed final write
// is logged but not returned, retrying the message would not fix it.
func (h *ThumbRequestHandler) ProcessGenRequest(body []byte) error {
	req, cfg, err := h.decode(body)
	if err != nil {
		return err
	}

	h.telemetry.Metrics().Increment(
		metrics.ThumbGenRequestReceived,
		map[string]string{"filePath": cfg.InputRef()},
	)

	result, err := h.thumbnails.CreateThumbnail(cfg)
	if err != nil {
		return fmt.Errorf(
			"thumbnail generation failed for request %s: %w",
			req.ThumbRequestId,
			err,
		)
	}

	if !result.OK() {
		slog.Warn(
			"Thumbnail request completed without a thumbnail",
			"requestId", req.ThumbRequestId,
			"thumbnail", result.Path,
			"error", result.WriteErr,
		)
		return nil
	}

	slog.Debug(
		"Thumbnail request completed",
		"requestId", req.ThumbRequestId,
		"thumbnail", result.Path,
		"cached", result.Cached,
	)
	return nil
}

// ProcessDelRequest removes the thumbnail the request resolves to.
func (h *ThumbRequestHandler) ProcessDelRequest(body []byte) error {
	req, cfg, err := h.decode(body)
	if err != nil {
		return err
	}

	h.telemetry.Metrics().Increment(
		metrics.ThumbDelRequestReceived,
		map[string]string{"filePath": cfg.InputRef()},
	)

	filename, err := h.thumbnails.DeleteThumbnail(cfg)
	if err != nil {
		return fmt.Errorf(
			"thumbnail removal failed for request %s: %w",
			req.ThumbRequestId,
			err,
		)
	}

	slog.Debug(
		"Thumbnail removed",
		"requestId", req.ThumbRequestId,
		"thumbnail", filename,
	)
	return nil
}

func (h *ThumbRequestHandler) decode(
	body []byte,
) (models.ThumbRequest, *models.ThumbConfig, error) {
	var req models.ThumbRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, fmt.Errorf(
			"%w: malformed thumbnail request: %v",
			apperrors.ErrInvalidArgument,
			err,
		)
	}

	cfg, err := h.presets.Resolve(req)
	if err != nil {
		return req, nil, fmt.Errorf(
			"invalid thumbnail request %s: %w",
			req.ThumbRequestId,
			err,
		)
	}

	return req, cfg, nil
}

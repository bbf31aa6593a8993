package webapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuskit/faceroll/internal/render"
	"github.com/campuskit/faceroll/internal/session"
)

const (
	// previewFrameInterval caps the MJPEG stream rate. The capture loop
	// refreshes output at its own cadence; pushing parts faster than
	// this only resends identical frames.
	previewFrameInterval = 100 * time.Millisecond

	previewBoundary = "frame"
	previewEndpoint = "preview"
)

// GetFrame returns a single annotated JPEG of the session's current
// output. A session with no frame yet still renders, as a backdrop
// carrying the status line.
func (c *Controller) GetFrame(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	sess, ok := c.registry.Get(id)
	if !ok {
		return c.HandleError(ctx, nil, "session not found", http.StatusNotFound)
	}

	data, err := render.EncodeJPEG(render.Annotate(sess.Output()))
	if err != nil {
		return c.HandleError(ctx, err, "failed to encode frame", http.StatusInternalServerError)
	}
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	return ctx.Blob(http.StatusOK, "image/jpeg", data)
}

// StreamPreview serves the session's annotated preview as an MJPEG
// stream. The connection stays open until the client leaves or the
// session ends.
func (c *Controller) StreamPreview(ctx echo.Context) error {
	id, err := parseSessionID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid session id", http.StatusBadRequest)
	}
	sess, ok := c.registry.Get(id)
	if !ok {
		return c.HandleError(ctx, nil, "session not found", http.StatusNotFound)
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary="+previewBoundary)
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	start := time.Now()
	reason := "client_closed"
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.StreamConnectionStarted(previewEndpoint)
		defer func() {
			c.metrics.HTTP.StreamConnectionClosed(previewEndpoint, time.Since(start).Seconds(), reason)
		}()
	}

	ticker := time.NewTicker(previewFrameInterval)
	defer ticker.Stop()

	reqCtx := ctx.Request().Context()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-sess.Done():
			reason = "session_ended"
			return nil
		case <-ticker.C:
			if err := c.writePreviewPart(res, sess.Output()); err != nil {
				reason = "write_error"
				if c.metrics != nil && c.metrics.HTTP != nil {
					c.metrics.HTTP.RecordStreamError(previewEndpoint, "write")
				}
				return nil
			}
			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordStreamFrameSent(previewEndpoint)
			}
			res.Flush()
		}
	}
}

func (c *Controller) writePreviewPart(res *echo.Response, out *session.Output) error {
	data, err := render.EncodeJPEG(render.Annotate(out))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", previewBoundary, len(data)); err != nil {
		return err
	}
	if _, err := res.Write(data); err != nil {
		return err
	}
	_, err = res.Write([]byte("\r\n"))
	return err
}

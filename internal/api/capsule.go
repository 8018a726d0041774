package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// ISOTimeLayout is the wire format of the opening time (UTC, millisecond precision).
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

// CreateCapsule posts a capsule as multipart/form-data.
func (c *Client) CreateCapsule(ctx context.Context, in *CreateRequest) (*Created, error) {
	body, contentType, err := EncodeCreateRequest(in)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/capsule/create", body, in.RequestID)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var out Created
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create response has no id")
	}
	return &out, nil
}

// EncodeCreateRequest serializes in as a multipart body and returns it with
// its content type. Image i is sent as images[i] with its caption as
// image_comments[i], so blob and caption keep the same index.
func EncodeCreateRequest(in *CreateRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, id := range in.SharedWith {
		if err := w.WriteField(fmt.Sprintf("shared_with[%d]", i), id); err != nil {
			return nil, "", err
		}
	}

	if err := writeImages(w, in.Images); err != nil {
		return nil, "", err
	}

	fields := []struct{ key, value string }{
		{"title", in.Title},
		{"description", in.Description},
		{"time", in.OpeningTime.UTC().Format(ISOTimeLayout)},
		{"vision", in.Vision},
		{"privacy", in.Privacy},
		{"design", in.Design},
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// writeImages writes image i as images[i] with its caption as image_comments[i].
func writeImages(w *multipart.Writer, images []ImagePart) error {
	for i, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images[%d]"; filename="%s"`, i, escapeQuotes(img.FileName)))
		mediaType := img.MediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		h.Set("Content-Type", mediaType)
		part, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := part.Write(img.Data); err != nil {
			return err
		}
		if err := w.WriteField(fmt.Sprintf("image_comments[%d]", i), img.Caption); err != nil {
			return err
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

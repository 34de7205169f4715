package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// BlobLike is satisfied by any argument value the Payload Preparer should
// upload rather than pass through verbatim, regardless of what the
// server's schema says — spec.md §4.2 drives substitution off the
// schema, but a caller handing in raw bytes should not need to also edit
// the server's api_info to get it uploaded.
type BlobLike interface {
	BlobName() string
	BlobReader() io.Reader
}

// Blob is the simplest BlobLike: an in-memory payload with a filename.
type Blob struct {
	Name string
	Data []byte
}

func (b Blob) BlobName() string      { return b.Name }
func (b Blob) BlobReader() io.Reader { return bytes.NewReader(b.Data) }

// FileData is the server-shaped reference a successful upload is
// replaced with on the wire, matching gradio's FileData schema.
type FileData struct {
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	OrigName string `json:"orig_name,omitempty"`
	Meta     struct {
		ModuleName string `json:"_type"`
	} `json:"meta"`
}

// Uploader is the external collaborator spec.md §1 places out of this
// core's scope ("file-upload HTTP details"): given a root URL and a blob,
// it returns the server-assigned path. The default implementation
// (httpUploader) POSTs a multipart/form-data request to
// ${root}/upload, which is what gradio's server expects.
type Uploader interface {
	Upload(ctx context.Context, rootURL, token string, blob BlobLike) (FileData, error)
}

type httpUploader struct {
	client *http.Client
}

// NewHTTPUploader returns the default Uploader, POSTing multipart bodies
// with the given *http.Client (nil uses http.DefaultClient).
func NewHTTPUploader(client *http.Client) Uploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpUploader{client: client}
}

func (u *httpUploader) Upload(ctx context.Context, rootURL, token string, blob BlobLike) (FileData, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", blob.BlobName())
	if err != nil {
		return FileData{}, err
	}
	if _, err := io.Copy(part, blob.BlobReader()); err != nil {
		return FileData{}, err
	}
	if err := w.Close(); err != nil {
		return FileData{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rootURL+"/upload", &body)
	if err != nil {
		return FileData{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return FileData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return FileData{}, fmt.Errorf("gradio: upload failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil || len(paths) == 0 {
		return FileData{}, fmt.Errorf("gradio: malformed upload response: %w", err)
	}

	fd := FileData{Path: paths[0], OrigName: blob.BlobName()}
	fd.Meta.ModuleName = "gradio.FileData"
	return fd, nil
}

// Prepare walks args positionally and uploads every argument that
// implements BlobLike, substituting it with the server's FileData
// reference (spec.md §4.2). A value that is not BlobLike passes through
// unchanged, even when info's schema marks its parameter as file-like.
// Argument order is preserved; the first upload failure aborts and is
// returned to the caller wrapped with the argument's index —
// Submit treats it as a synchronous error, never as a status{error}
// event, since it happens before any transport is chosen.
func Prepare(ctx context.Context, rootURL string, args []any, info *EndpointInfo, uploader Uploader, token string) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		blob, isBlob := arg.(BlobLike)
		wantsFile := info != nil && i < len(info.Parameters) && info.Parameters[i].isFileLike()

		if !isBlob && !wantsFile {
			out[i] = arg
			continue
		}
		if !isBlob {
			out[i] = arg
			continue
		}

		fd, err := uploader.Upload(ctx, rootURL, token, blob)
		if err != nil {
			return nil, fmt.Errorf("gradio: uploading argument %d: %w", i, err)
		}
		out[i] = fd
	}
	return out, nil
}

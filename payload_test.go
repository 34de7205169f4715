package gradio

import (
	"context"
	"testing"
)

type fakeUploader struct {
	calls []string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, rootURL, token string, blob BlobLike) (FileData, error) {
	f.calls = append(f.calls, blob.BlobName())
	if f.err != nil {
		return FileData{}, f.err
	}
	return FileData{Path: "uploaded/" + blob.BlobName(), OrigName: blob.BlobName()}, nil
}

func TestPrepareUploadsBlobArgs(t *testing.T) {
	info := &EndpointInfo{Parameters: []ParameterInfo{
		{Label: "name"},
		{Label: "photo", Component: "Image"},
	}}
	up := &fakeUploader{}

	out, err := Prepare(context.Background(), "http://x", []any{"alice", Blob{Name: "a.png", Data: []byte("x")}}, info, up, "")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out[0] != "alice" {
		t.Errorf("out[0] = %v, want alice", out[0])
	}
	fd, ok := out[1].(FileData)
	if !ok || fd.Path != "uploaded/a.png" {
		t.Errorf("out[1] = %+v, want uploaded FileData", out[1])
	}
	if len(up.calls) != 1 || up.calls[0] != "a.png" {
		t.Errorf("upload calls = %v", up.calls)
	}
}

func TestPreparePreservesOrderAndNonBlobArgs(t *testing.T) {
	out, err := Prepare(context.Background(), "http://x", []any{1, "two", 3.0}, &EndpointInfo{}, &fakeUploader{}, "")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out[0] != 1 || out[1] != "two" || out[2] != 3.0 {
		t.Errorf("out = %v", out)
	}
}

func TestPrepareUploadFailureAborts(t *testing.T) {
	up := &fakeUploader{err: errBoom}
	_, err := Prepare(context.Background(), "http://x", []any{Blob{Name: "a"}}, &EndpointInfo{}, up, "")
	if err == nil {
		t.Fatal("expected error from failed upload")
	}
}

var errBoom = &ServerError{Message: "boom"}

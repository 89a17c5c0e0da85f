package upload

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jlairapp/faceFlipper/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func multipartRequest(t *testing.T, uri string, fields map[string]string, fileField, filename string, content []byte) *fasthttp.RequestCtx {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(uri)
	req.Header.SetContentType(writer.FormDataContentType())
	req.SetBody(body.Bytes())

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func decodeResponse(t *testing.T, ctx *fasthttp.RequestCtx) Response {
	t.Helper()
	var response Response
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	return response
}

func TestEndpoints_Upload_ShouldStoreSingleShotFile(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	endpoints := NewEndpoints(NewCoordinator(store, &recordingCommitter{}, nil, nil, 0), "")
	ctx := multipartRequest(t, "/upload", map[string]string{
		"qquuid":     "abc",
		"qqfilename": "x.txt",
	}, "qqfile", "x.txt", []byte("0123456789"))

	// when
	endpoints.Upload(ctx)

	// then
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "text/plain", string(ctx.Response.Header.ContentType()))
	assert.True(t, decodeResponse(t, ctx).Success)
	content, err := os.ReadFile(filepath.Join(store.UploadDir("abc"), "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))
}

func TestEndpoints_Upload_ShouldAssembleChunksAndCommit(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	committer := &recordingCommitter{}
	endpoints := NewEndpoints(NewCoordinator(store, committer, nil, nil, 0), "")

	// when
	for _, index := range []string{"1", "0"} {
		ctx := multipartRequest(t, "/upload?_id=u1", map[string]string{
			"qquuid":          "def",
			"qqfilename":      "y.bin",
			"qqpartindex":     index,
			"qqtotalparts":    "2",
			"qqtotalfilesize": "2",
		}, "qqfile", "blob", []byte("z"))
		endpoints.Upload(ctx)
		require.True(t, decodeResponse(t, ctx).Success)
	}

	// then
	assert.Equal(t, 1, committer.count())
	content, err := os.ReadFile(filepath.Join(store.UploadDir("def"), "y.bin"))
	require.NoError(t, err)
	assert.Equal(t, "zz", string(content))
}

func TestEndpoints_Upload_ShouldPreventRetryWhenTooLarge(t *testing.T) {
	// given
	endpoints := NewEndpoints(NewCoordinator(NewChunkStore(t.TempDir()), &recordingCommitter{}, nil, nil, 5), "")
	ctx := multipartRequest(t, "/upload", map[string]string{
		"qquuid":     "abc",
		"qqfilename": "x.txt",
	}, "qqfile", "x.txt", []byte("0123456789"))

	// when
	endpoints.Upload(ctx)

	// then
	response := decodeResponse(t, ctx)
	assert.False(t, response.Success)
	assert.Equal(t, "Too big!", response.Error)
	assert.True(t, response.PreventRetry)
}

func TestEndpoints_Upload_ShouldRejectChunkWithoutOwner(t *testing.T) {
	// given
	endpoints := NewEndpoints(NewCoordinator(NewChunkStore(t.TempDir()), &recordingCommitter{}, nil, nil, 0), "")
	ctx := multipartRequest(t, "/upload", map[string]string{
		"qquuid":       "def",
		"qqfilename":   "y.bin",
		"qqpartindex":  "0",
		"qqtotalparts": "2",
	}, "qqfile", "blob", []byte("z"))

	// when
	endpoints.Upload(ctx)

	// then
	response := decodeResponse(t, ctx)
	assert.False(t, response.Success)
	assert.True(t, response.PreventRetry)
}

func TestEndpoints_Upload_ShouldFailWithoutFile(t *testing.T) {
	// given
	endpoints := NewEndpoints(NewCoordinator(NewChunkStore(t.TempDir()), &recordingCommitter{}, nil, nil, 0), "")
	ctx := multipartRequest(t, "/upload", map[string]string{"qquuid": "abc"}, "", "", nil)

	// when
	endpoints.Upload(ctx)

	// then
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "No file uploaded!", decodeResponse(t, ctx).Error)
}

func TestEndpoints_Upload_ShouldHonourCustomInputName(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	endpoints := NewEndpoints(NewCoordinator(store, &recordingCommitter{}, nil, nil, 0), "file")
	ctx := multipartRequest(t, "/upload", map[string]string{"qquuid": "abc"}, "file", "x.txt", []byte("hi"))

	// when
	endpoints.Upload(ctx)

	// then
	assert.True(t, decodeResponse(t, ctx).Success)
	_, err := os.Stat(filepath.Join(store.UploadDir("abc"), "x.txt"))
	assert.NoError(t, err)
}

func TestEndpoints_Delete_ShouldRemoveUpload(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	storeChunks(t, store, "def", 2, map[int]string{0: "A"})
	endpoints := NewEndpoints(NewCoordinator(store, &recordingCommitter{}, nil, nil, 0), "")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.SetUserValue("uploadID", "def")

	// when
	endpoints.Delete(ctx)

	// then
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Empty(t, ctx.Response.Body())
	_, err := os.Stat(store.UploadDir("def"))
	assert.True(t, os.IsNotExist(err))
}

func TestEndpoints_Delete_ShouldRejectInvalidID(t *testing.T) {
	// given
	endpoints := NewEndpoints(NewCoordinator(NewChunkStore(t.TempDir()), &recordingCommitter{}, nil, nil, 0), "")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.SetUserValue("uploadID", "..")

	// when
	endpoints.Delete(ctx)

	// then
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestEndpoints_Upload_ShouldUseTokenSubjectWhenOwnerArgIsAbsent(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	endpoints := NewEndpoints(NewCoordinator(store, &recordingCommitter{}, nil, nil, 0), "")
	ctx := multipartRequest(t, "/upload", map[string]string{
		"qquuid":       "def",
		"qqfilename":   "y.bin",
		"qqpartindex":  "0",
		"qqtotalparts": "2",
	}, "qqfile", "blob", []byte("A"))
	ctx.SetUserValue(middleware.UserValueOwnerID, "u1")

	// when
	endpoints.Upload(ctx)

	// then
	assert.True(t, decodeResponse(t, ctx).Success)
	owner, err := os.ReadFile(filepath.Join(store.UploadDir("def"), ".owner"))
	require.NoError(t, err)
	assert.Equal(t, "u1", string(owner))
}

func TestEndpoints_Upload_ShouldRejectChunkOfAnotherOwnersUpload(t *testing.T) {
	// given
	endpoints := NewEndpoints(NewCoordinator(NewChunkStore(t.TempDir()), &recordingCommitter{}, nil, nil, 0), "")
	fields := map[string]string{
		"qquuid":       "def",
		"qqfilename":   "y.bin",
		"qqpartindex":  "0",
		"qqtotalparts": "2",
	}
	first := multipartRequest(t, "/upload?_id=u1", fields, "qqfile", "blob", []byte("A"))
	endpoints.Upload(first)
	require.True(t, decodeResponse(t, first).Success)

	// when
	second := multipartRequest(t, "/upload?_id=u2", fields, "qqfile", "blob", []byte("X"))
	endpoints.Upload(second)

	// then
	response := decodeResponse(t, second)
	assert.False(t, response.Success)
	assert.Equal(t, "Upload belongs to another owner!", response.Error)
	assert.True(t, response.PreventRetry)
}

func TestEndpoints_Delete_ShouldForbidAnotherOwner(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	endpoints := NewEndpoints(NewCoordinator(store, &recordingCommitter{}, nil, nil, 0), "")
	upload := multipartRequest(t, "/upload?_id=u1", map[string]string{
		"qquuid":       "def",
		"qqfilename":   "y.bin",
		"qqpartindex":  "0",
		"qqtotalparts": "2",
	}, "qqfile", "blob", []byte("A"))
	endpoints.Upload(upload)
	require.True(t, decodeResponse(t, upload).Success)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.SetUserValue("uploadID", "def")
	ctx.SetUserValue(middleware.UserValueOwnerID, "u2")

	// when
	endpoints.Delete(ctx)

	// then
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	_, err := os.Stat(store.UploadDir("def"))
	assert.NoError(t, err)
}

package upload

import (
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jlairapp/faceFlipper/internal/middleware"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	DefaultFileInputName = "qqfile"

	fieldUUID          = "qquuid"
	fieldFilename      = "qqfilename"
	fieldPartIndex     = "qqpartindex"
	fieldTotalParts    = "qqtotalparts"
	fieldTotalFileSize = "qqtotalfilesize"

	queryOwnerID = "_id"
)

type Endpoints struct {
	coordinator   *Coordinator
	fileInputName string
}

func NewEndpoints(coordinator *Coordinator, fileInputName string) *Endpoints {
	if fileInputName == "" {
		fileInputName = DefaultFileInputName
	}
	return &Endpoints{
		coordinator:   coordinator,
		fileInputName: fileInputName,
	}
}

// Upload accepts one part (or a whole file) of a fine-uploader style
// multipart submission. Replies are JSON sent as text/plain for old browsers.
func (e *Endpoints) Upload(ctx *fasthttp.RequestCtx) {
	form, err := ctx.MultipartForm()
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse multipart form")
		writeResponse(ctx, fasthttp.StatusBadRequest, &Response{Error: "Invalid upload request!", PreventRetry: true})
		return
	}

	files := form.File[e.fileInputName]
	if len(files) == 0 {
		writeResponse(ctx, fasthttp.StatusBadRequest, &Response{Error: "No file uploaded!", PreventRetry: true})
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		writeResponse(ctx, fasthttp.StatusOK, &Response{Error: "Problem copying the file!"})
		return
	}
	defer file.Close()

	part, err := parsePart(form.Value)
	if err != nil {
		log.Error().Err(err).Msg("Invalid upload fields")
		writeResponse(ctx, fasthttp.StatusOK, responseFor(err))
		return
	}
	if part.Filename == "" {
		part.Filename = fileHeader.Filename
	}
	part.OwnerID = ownerID(ctx)
	part.Size = fileHeader.Size
	part.Data = file

	result, err := e.coordinator.HandlePart(ctx, part)
	if err != nil {
		log.Error().Err(err).Str("uploadId", part.UploadID).Msg("Failed to handle upload part")
		writeResponse(ctx, fasthttp.StatusOK, responseFor(err))
		return
	}

	log.Debug().
		Str("uploadId", part.UploadID).
		Str("stage", string(result.Stage)).
		Msg("Upload part handled")
	writeResponse(ctx, fasthttp.StatusOK, &Response{Success: true})
}

// Delete removes an upload's directory tree. The body is always empty.
func (e *Endpoints) Delete(ctx *fasthttp.RequestCtx) {
	uploadID, _ := ctx.UserValue("uploadID").(string)

	err := e.coordinator.DeleteUpload(ctx, uploadID, ownerID(ctx))
	switch {
	case err == nil:
		ctx.SetStatusCode(fasthttp.StatusOK)
	case errors.Is(err, ErrInvalidPart):
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	case errors.Is(err, ErrNotOwner):
		ctx.SetStatusCode(fasthttp.StatusForbidden)
	default:
		log.Error().Err(err).Str("uploadId", uploadID).Msg("Problem deleting file")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}

// ownerID is the _id query argument, or the authenticated token subject when
// the argument is absent.
func ownerID(ctx *fasthttp.RequestCtx) string {
	if owner := string(ctx.QueryArgs().Peek(queryOwnerID)); owner != "" {
		return owner
	}
	subject, _ := ctx.UserValue(middleware.UserValueOwnerID).(string)
	return subject
}

func parsePart(values map[string][]string) (*Part, error) {
	part := &Part{
		UploadID: formValue(values, fieldUUID),
		Filename: formValue(values, fieldFilename),
	}

	if v := formValue(values, fieldTotalFileSize); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Join(ErrInvalidPart, err)
		}
		part.TotalSize = size
	}

	v := formValue(values, fieldPartIndex)
	if v == "" {
		return part, nil
	}

	index, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.Join(ErrInvalidPart, err)
	}
	total, err := strconv.Atoi(formValue(values, fieldTotalParts))
	if err != nil {
		return nil, errors.Join(ErrInvalidPart, err)
	}
	part.Index = &index
	part.TotalParts = total

	return part, nil
}

func formValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func responseFor(err error) *Response {
	switch {
	case errors.Is(err, ErrTooLarge):
		return &Response{Error: "Too big!", PreventRetry: true}
	case errors.Is(err, ErrOwnerRequired):
		return &Response{Error: "Missing owner id!", PreventRetry: true}
	case errors.Is(err, ErrNotOwner):
		return &Response{Error: "Upload belongs to another owner!", PreventRetry: true}
	case errors.Is(err, ErrInvalidPart):
		return &Response{Error: "Invalid upload request!", PreventRetry: true}
	case errors.Is(err, ErrStoreFile):
		return &Response{Error: "Problem copying the file!"}
	case errors.Is(err, ErrStoreChunk):
		return &Response{Error: "Problem storing the chunk!"}
	case errors.Is(err, ErrCombine), errors.Is(err, ErrMissingChunks):
		return &Response{Error: "Problem combining the chunks!"}
	default:
		return &Response{Error: "Problem storing the file!"}
	}
}

func writeResponse(ctx *fasthttp.RequestCtx, status int, response *Response) {
	body, err := json.Marshal(response)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	// text/plain keeps IE9 and older from offering the JSON as a download
	ctx.SetContentType("text/plain")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

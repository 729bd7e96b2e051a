package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/ansmelkov/filedrop/applications/server"
	"github.com/ansmelkov/filedrop/applications/server/domain"
	"github.com/ansmelkov/filedrop/applications/server/formdata"
	"github.com/ansmelkov/filedrop/applications/server/services"
)

func NewRouter(svc server.FileService, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/files", UploadHandler(svc, logger)).Methods(http.MethodPost)
	r.HandleFunc("/files", ListFilesHandler(svc, logger)).Methods(http.MethodGet)
	r.HandleFunc("/files/{filename}", GetFileHandler(svc, logger)).Methods(http.MethodGet)
	return r
}

type uploadedFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func UploadHandler(svc server.FileService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts, err := svc.Upload(r.Context(), r.Header.Get("Content-Type"), r.Body)
		if err != nil {
			level.Error(logger).Log("msg", "upload error",
				"err", err,
			)
			writeErr(w, err, uploadStatus(err))
			return
		}

		resp := make([]uploadedFile, 0, len(parts))
		for _, p := range parts {
			resp = append(resp, uploadedFile{
				Filename:    p.Filename,
				ContentType: p.ContentType,
				Size:        p.Size,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err = json.NewEncoder(w).Encode(resp); err != nil {
			level.Error(logger).Log("msg", "error encoding response", "err", err)
		}
	}
}

func GetFileHandler(svc server.FileService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]
		if filename == "" {
			writeErr(w, errors.New("empty filename"), http.StatusBadRequest)
			return
		}

		file, err := svc.GetFile(r.Context(), filename)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrFileNotFound) {
				status = http.StatusNotFound
			}
			writeErr(w, err, status)
			return
		}
		defer file.Body.Close()

		if file.Meta.ContentType != "" {
			w.Header().Set("Content-Type", file.Meta.ContentType)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(file.Meta.ContentLength, 10))

		if _, err = io.Copy(w, file.Body); err != nil {
			level.Error(logger).Log("msg", "error body copy", "err", err)
			return
		}
	}
}

func ListFilesHandler(svc server.FileService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metas, err := svc.ListFiles(r.Context())
		if err != nil {
			level.Error(logger).Log("msg", "list error", "err", err)
			writeErr(w, err, http.StatusInternalServerError)
			return
		}

		resp := make([]uploadedFile, 0, len(metas))
		for _, m := range metas {
			resp = append(resp, uploadedFile{
				Filename:    m.Name,
				ContentType: m.ContentType,
				Size:        m.ContentLength,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(resp); err != nil {
			level.Error(logger).Log("msg", "error encoding response", "err", err)
		}
	}
}

// uploadStatus maps service errors to response codes.
func uploadStatus(err error) int {
	var mErr *formdata.MalformedHeaderError
	switch {
	case errors.Is(err, domain.ErrFileExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotMultipart), errors.As(err, &mErr):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error, status int) {
	http.Error(w, err.Error(), status)
}

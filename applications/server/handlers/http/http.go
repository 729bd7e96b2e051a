package http

import (
	"net/http"

	"github.com/go-kit/log"

	"github.com/ansmelkov/filedrop/applications/server"
	"github.com/ansmelkov/filedrop/applications/server/config"
)

func NewHTTPServer(conf config.Api, fileService server.FileService, logger log.Logger) *http.Server {
	mux := NewRouter(fileService, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}

package main

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/publish"
)

var (
	serveAddr string
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an output directory to map viewers",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := serveDir
		if dir == "" {
			dir = cfg.DataDir
		}
		srv := &http.Server{Addr: serveAddr, Handler: newRouter(dir)}
		go func() {
			<-cmd.Context().Done()
			_ = srv.Close()
		}()
		logger.Info("Serving", zap.String("addr", serveAddr), zap.String("dir", dir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

type fileEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// newRouter serves the files of dir and lists them under /files.
func newRouter(dir string) http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/files", func(w http.ResponseWriter, r *http.Request) {
		files, err := publish.Files(dir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries := make([]fileEntry, 0, len(files))
		for _, f := range files {
			rel, err := filepath.Rel(dir, f)
			if err != nil {
				continue
			}
			entries = append(entries, fileEntry{Path: filepath.ToSlash(rel), Type: publish.ContentType(f)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})
	router.Handle("/*", http.FileServer(http.Dir(dir)))
	return router
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "Directory to serve (default: the data directory)")
	rootCmd.AddCommand(serveCmd)
}

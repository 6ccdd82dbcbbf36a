package server

import (
	"net/http"
	"strconv"

	"github.com/logflow/pmdash/pkg/mining"
	"github.com/logflow/pmdash/pkg/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// current loads the active snapshot once per request; every analysis in
// the request sees the same log.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*store.Snapshot, bool) {
	snap, err := s.store.Current(r.Context())
	if err != nil {
		jsonError(w, r, err)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, snap.Info())
}

// runOptions reads the optional expected and limit query parameters.
func runOptions(r *http.Request) ([]mining.Option, string) {
	var opts []mining.Option

	if v := r.URL.Query().Get("expected"); v != "" {
		seq := mining.ParseSequence(v)
		if len(seq) == 0 {
			return nil, "expected must list at least one activity"
		}
		opts = append(opts, mining.WithExpected(seq))
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, "limit must be a positive integer"
		}
		opts = append(opts, mining.WithTopVariants(n))
	}

	return opts, ""
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, snap *store.Snapshot, opts []mining.Option) {
	report, err := s.engine.Analyze(r.Context(), snap.Log, opts...)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	report.SnapshotID = snap.ID
	jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	opts, problem := runOptions(r)
	if problem != "" {
		badRequest(w, problem)
		return
	}

	snap, ok := s.current(w, r)
	if !ok {
		return
	}
	s.analyze(w, r, snap, opts)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, mining.BuildOverview(snap.Log, s.engine.Options().SampleRows))
}

func (s *Server) handleBottlenecks(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, mining.RankBottlenecks(snap.Log))
}

func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, mining.LoopReport(mining.DetectLoops(snap.Log)))
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}

	limit := s.engine.Options().TopVariants
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	jsonResponse(w, http.StatusOK, mining.MineVariants(snap.Log, limit))
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w, r)
	if !ok {
		return
	}

	expected := s.engine.Options().Expected
	if v := r.URL.Query().Get("expected"); v != "" {
		if expected = mining.ParseSequence(v); len(expected) == 0 {
			badRequest(w, "expected must list at least one activity")
			return
		}
	}
	jsonResponse(w, http.StatusOK, mining.CheckCompliance(snap.Log, expected))
}

// handleUpload reads a multipart file field named "file", validates it and
// makes it the active log. Invalid uploads and bad query parameters leave
// the active log untouched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	opts, problem := runOptions(r)
	if problem != "" {
		badRequest(w, problem)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "failed to parse upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "no file provided")
		return
	}
	defer file.Close()

	rs, err := s.loader.Read(r.Context(), file, header.Filename)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	snap, err := s.publish(r.Context(), header.Filename, rs)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	s.analyze(w, r, snap, opts)
}

// handleReset restores a freshly generated sample log.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	opts, problem := runOptions(r)
	if problem != "" {
		badRequest(w, problem)
		return
	}

	snap, err := s.publishSample(r.Context())
	if err != nil {
		jsonError(w, r, err)
		return
	}
	s.analyze(w, r, snap, opts)
}

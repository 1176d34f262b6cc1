package httpapi

import (
	"context"
	"net/http"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/authfilter"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
)

const defaultConcurrency = 2

func identityFrom(r *http.Request) (authfilter.Identity, error) {
	identity, ok := authfilter.FromContext(r.Context())
	if !ok {
		return authfilter.Identity{}, apperr.Unauthorized("missing identity")
	}
	return identity, nil
}

type searchAndExtractRequest struct {
	Platform    string   `json:"platform"`
	Keywords    []string `json:"keywords"`
	Limit       int      `json:"limit"`
	Concurrency int      `json:"concurrency"`
}

func (s *Server) handleSearchAndExtract(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req searchAndExtractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Platform == "" || len(req.Keywords) == 0 {
		writeError(w, apperr.Validation("platform and keywords are required"))
		return
	}
	concurrency := orDefault(req.Concurrency, defaultConcurrency)

	_, result, err := s.runSyncOperation(r.Context(), identity, "search_and_extract", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		notes, err := svc.SearchAndExtract(ctx, req.Platform, req.Keywords, req.Limit, concurrency)
		if err != nil {
			return nil, err
		}
		return map[string]any{"notes": notes, "count": len(notes)}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

type harvestRequest struct {
	Platform   string   `json:"platform"`
	CreatorIDs []string `json:"creator_ids"`
	Limit      int      `json:"limit"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req harvestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Platform == "" || len(req.CreatorIDs) == 0 {
		writeError(w, apperr.Validation("platform and creator_ids are required"))
		return
	}

	_, result, err := s.runSyncOperation(r.Context(), identity, "harvest_user_content", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		notes, err := svc.HarvestUserContent(ctx, req.Platform, req.CreatorIDs, req.Limit, defaultConcurrency)
		if err != nil {
			return nil, err
		}
		return map[string]any{"notes": notes, "count": len(notes)}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

type getNoteDetailRequest struct {
	Platform    string   `json:"platform"`
	URLs        []string `json:"urls"`
	Concurrency int      `json:"concurrency"`
}

func (s *Server) handleGetNoteDetail(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req getNoteDetailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Platform == "" || len(req.URLs) == 0 {
		writeError(w, apperr.Validation("platform and urls are required"))
		return
	}
	concurrency := orDefault(req.Concurrency, defaultConcurrency)

	_, result, err := s.runSyncOperation(r.Context(), identity, "get_note_detail", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		details, err := svc.GetNoteDetails(ctx, req.Platform, req.URLs, concurrency)
		if err != nil {
			return nil, err
		}
		return map[string]any{"details": details}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

type publishRequest struct {
	Platform    string   `json:"platform"`
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
	Images      []string `json:"images"`
	Tags        []string `json:"tags"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Platform == "" || req.Content == "" {
		writeError(w, apperr.Validation("platform and content are required"))
		return
	}

	_, result, err := s.runSyncOperation(r.Context(), identity, "publish_content", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		res, err := svc.PublishContent(ctx, req.Platform, req.Content, req.ContentType, req.Images, req.Tags)
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": res}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

type loginRequest struct {
	Platform       string            `json:"platform"`
	Method         string            `json:"method"`
	Cookies        map[string]string `json:"cookies,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Platform == "" || req.Method == "" {
		writeError(w, apperr.Validation("platform and method are required"))
		return
	}
	timeout := orDefault(req.TimeoutSeconds, 120)

	_, result, err := s.runSyncOperation(r.Context(), identity, "login", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		res, err := svc.Login(ctx, req.Platform, connectorsvc.LoginMethod(req.Method), req.Cookies, timeout)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"is_logged_in": res.IsLoggedIn,
			"context_id":   res.ContextID,
			"qr_code":      res.QRCode,
			"timeout_at":   res.TimeoutAt,
		}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

type confirmLoginRequest struct {
	ContextID string `json:"context_id"`
}

func (s *Server) handleConfirmLogin(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	platform := r.PathValue("platform")
	var req confirmLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ContextID == "" {
		writeError(w, apperr.Validation("context_id is required"))
		return
	}

	_, result, err := s.runSyncOperation(r.Context(), identity, "login", func(ctx context.Context, svc *connectorsvc.Service) (map[string]any, error) {
		if err := svc.ConfirmLogin(ctx, platform, req.ContextID); err != nil {
			return nil, err
		}
		return map[string]any{"confirmed": true}, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if _, err := identityFrom(r); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"platforms": s.registry.Platforms()})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

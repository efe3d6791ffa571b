package listener

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"revitmcp/internal/domain"
	"revitmcp/internal/revit"
)

func (s *Server) handleProjectInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.session.ProjectInfo()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(map[string]interface{}{
		"project_name":   info.ProjectName,
		"project_number": info.ProjectNumber,
		"file_path":      info.FilePath,
		"revit_version":  info.RevitVersion,
		"build_number":   info.BuildNumber,
		"document_title": info.DocumentTitle,
	}))
}

// selectRequest accepts element IDs as strings or numbers; LLM generated
// payloads use both.
type selectRequest struct {
	ElementIDs []interface{} `json:"element_ids"`
}

func (req selectRequest) ids() []string {
	out := make([]string, 0, len(req.ElementIDs))
	for _, v := range req.ElementIDs {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatInt(int64(x), 10))
		}
	}
	return out
}

func (s *Server) selectByIDs(w http.ResponseWriter, r *http.Request, extra map[string]interface{}) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := req.ids()
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "element_ids is required")
		return
	}
	if err := s.session.SetSelection(ids); err != nil {
		writeSessionError(w, err)
		return
	}
	selected := s.session.Selection()
	data := map[string]interface{}{
		"selected_count": len(selected),
		"element_ids":    selected,
	}
	for k, v := range extra {
		data[k] = v
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(data))
}

func (s *Server) handleSelectByID(w http.ResponseWriter, r *http.Request) {
	s.selectByIDs(w, r, nil)
}

// handleSelectFocused selects and additionally zooms the active view to the
// selection on a live host; the in-memory session only records the focus.
func (s *Server) handleSelectFocused(w http.ResponseWriter, r *http.Request) {
	s.selectByIDs(w, r, map[string]interface{}{"focused": true})
}

type categoryRequest struct {
	Category string `json:"category_name"`
}

func (s *Server) elementsForCategory(w http.ResponseWriter, r *http.Request) ([]revit.Element, string, bool) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category_name is required")
		return nil, "", false
	}
	canonical, ok := revit.ResolveCategory(req.Category)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", req.Category))
		return nil, "", false
	}
	els, err := s.session.ElementsByCategory(canonical)
	if err != nil {
		writeSessionError(w, err)
		return nil, "", false
	}
	return els, canonical, true
}

func (s *Server) handleSelectByCategory(w http.ResponseWriter, r *http.Request) {
	els, canonical, ok := s.elementsForCategory(w, r)
	if !ok {
		return
	}
	ids := elementIDs(els)
	if len(ids) > 0 {
		if err := s.session.SetSelection(ids); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(map[string]interface{}{
		"category":       canonical,
		"selected_count": len(ids),
		"element_ids":    ids,
	}))
}

func (s *Server) handleGetByCategory(w http.ResponseWriter, r *http.Request) {
	els, canonical, ok := s.elementsForCategory(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(map[string]interface{}{
		"category":    canonical,
		"count":       len(els),
		"element_ids": elementIDs(els),
		"elements":    elementSummaries(els),
	}))
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req domain.FilterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CategoryName == "" {
		writeError(w, http.StatusBadRequest, "category_name is required")
		return
	}
	canonical, ok := revit.ResolveCategory(req.CategoryName)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", req.CategoryName))
		return
	}
	els, err := s.session.ElementsByCategory(canonical)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	var matched []revit.Element
	for _, el := range els {
		if req.LevelName != "" && el.Level != req.LevelName {
			continue
		}
		ok, err := matchesFilters(el, req.Parameters)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ok {
			matched = append(matched, el)
		}
	}
	data := map[string]interface{}{
		"category":    canonical,
		"count":       len(matched),
		"element_ids": elementIDs(matched),
		"elements":    elementSummaries(matched),
	}
	if req.LevelName != "" {
		data["level_name"] = req.LevelName
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(data))
}

func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	var req domain.PropertiesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.ElementIDs) == 0 {
		writeError(w, http.StatusBadRequest, "element_ids is required")
		return
	}
	if !s.session.HasDocument() {
		writeError(w, http.StatusServiceUnavailable, "no active Revit document")
		return
	}

	var out []map[string]interface{}
	var missing []string
	for _, id := range req.ElementIDs {
		el, err := s.session.Element(id)
		if err != nil {
			missing = append(missing, id)
			continue
		}
		params := make(map[string]interface{})
		if len(req.ParameterNames) > 0 {
			for _, name := range req.ParameterNames {
				if p, ok := el.Parameters[name]; ok {
					params[name] = p.Value()
				}
			}
		} else {
			for _, name := range revit.ParameterNames(el) {
				params[name] = el.Parameters[name].Value()
			}
		}
		out = append(out, map[string]interface{}{
			"element_id": el.ID,
			"name":       el.Name,
			"category":   el.Category,
			"level":      el.Level,
			"parameters": params,
		})
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "none of the requested elements were found")
		return
	}
	data := map[string]interface{}{
		"count":    len(out),
		"elements": out,
	}
	if len(missing) > 0 {
		data["missing_element_ids"] = missing
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(data))
}

func (s *Server) handleUpdateParameters(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, http.StatusBadRequest, "updates is required")
		return
	}

	type elementResult struct {
		ElementID string            `json:"element_id"`
		Updated   []string          `json:"updated,omitempty"`
		Errors    map[string]string `json:"errors,omitempty"`
	}
	var results []elementResult
	updated, failed := 0, 0

	err := s.session.RunTransaction("update_element_parameters", func(tx revit.Transaction) error {
		for _, upd := range req.Updates {
			res := elementResult{ElementID: upd.ElementID}
			names := make([]string, 0, len(upd.Parameters))
			for name := range upd.Parameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := tx.SetParameter(upd.ElementID, name, upd.Parameters[name]); err != nil {
					if res.Errors == nil {
						res.Errors = make(map[string]string)
					}
					res.Errors[name] = err.Error()
					failed++
					continue
				}
				res.Updated = append(res.Updated, name)
				updated++
			}
			results = append(results, res)
		}
		if updated == 0 {
			return fmt.Errorf("no parameter updates succeeded")
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, revit.ErrNoDocument) {
			writeSessionError(w, err)
			return
		}
		if updated > 0 {
			// Session-level failure (e.g. document closed mid-request).
			writeSessionError(w, err)
			return
		}
	}

	transaction := "committed"
	status := domain.StatusSuccess
	if updated == 0 {
		transaction = "rolled_back"
		status = domain.StatusError
	}
	s.logger.Printf("update_parameters updated=%d failed=%d transaction=%s", updated, failed, transaction)
	writeJSON(w, http.StatusOK, domain.Envelope{
		"status":        status,
		"updated_count": updated,
		"failed_count":  failed,
		"results":       results,
		"transaction":   transaction,
	})
}

type exportViewRequest struct {
	ViewName string `json:"view_name"`
}

func (s *Server) handleExportView(w http.ResponseWriter, r *http.Request) {
	var req exportViewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ViewName == "" {
		writeError(w, http.StatusBadRequest, "view_name is required")
		return
	}
	img, err := s.session.ExportView(req.ViewName)
	if err != nil {
		if !s.session.HasDocument() {
			writeSessionError(w, revit.ErrNoDocument)
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, domain.SuccessEnvelope(map[string]interface{}{
		"view_name":    img.ViewName,
		"content_type": img.ContentType,
		"image_base64": base64.StdEncoding.EncodeToString(img.Data),
	}))
}

func elementIDs(els []revit.Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, el.ID)
	}
	return out
}

func elementSummaries(els []revit.Element) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(els))
	for _, el := range els {
		out = append(out, map[string]interface{}{
			"id":    el.ID,
			"name":  el.Name,
			"level": el.Level,
		})
	}
	return out
}

package listener

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"revitmcp/internal/revit"
)

const testModel = `
project:
  name: Riverside Clinic
  number: "RC-100"
  file_path: C:\models\riverside.rvt
  revit_version: "2024"
  build: "24.1.10"
elements:
  - id: 1001
    name: Window-A
    category: windows
    level: Level 1
    parameters:
      Sill Height: {type: length, value: 2.25}
      Mark: {type: text, value: "W-01"}
      Comments: {type: text, value: ""}
  - id: 1002
    name: Window-B
    category: windows
    level: Level 2
    parameters:
      Sill Height: {type: length, value: 4.0}
      Mark: {type: text, value: "W-02"}
      Comments: {type: text, value: "replace glazing"}
  - id: 2001
    name: Basic Wall
    category: walls
    level: Level 1
    parameters:
      Structural: {type: yesno, value: 1}
      Area: {type: number, value: 120.5, read_only: true}
views:
  - name: Level 1 Plan
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	session, err := revit.ParseMemorySession([]byte(testModel))
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(session, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+RoutePrefix+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestProjectInfoRoute(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + RoutePrefix + "/project_info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "success", out["status"])
	require.Equal(t, "Riverside Clinic", out["project_name"])
	require.Equal(t, "riverside", out["document_title"])
}

func TestSelectByIDAcceptsNumericIDs(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/select_elements_by_id",
		map[string]interface{}{"element_ids": []interface{}{1001, "2001"}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", out["status"])
	require.EqualValues(t, 2, out["selected_count"])
}

func TestSelectByIDNotFound(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/select_elements_by_id",
		map[string]interface{}{"element_ids": []string{"9999"}})
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "error", out["status"])
}

func TestSelectFocused(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/select_elements_focused",
		map[string]interface{}{"element_ids": []string{"1001"}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["focused"])
}

func TestSelectByCategoryUsesCategoryNameField(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/select_elements_by_category",
		map[string]string{"category_name": "windows"})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 2, out["selected_count"])

	// The old field name is not accepted.
	code, _ = post(t, srv, "/select_elements_by_category",
		map[string]string{"category": "windows"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGetElementsByCategory(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/get_elements_by_category",
		map[string]string{"category_name": "Windows"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OST_Windows", out["category"])
	require.EqualValues(t, 2, out["count"])

	code, out = post(t, srv, "/get_elements_by_category",
		map[string]string{"category_name": "spaceships"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "error", out["status"])
}

func TestFilterByLevelAndCondition(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/elements/filter", map[string]interface{}{
		"category_name": "windows",
		"level_name":    "Level 2",
	})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])

	code, out = post(t, srv, "/elements/filter", map[string]interface{}{
		"category_name": "windows",
		"parameters": []map[string]string{
			{"name": "Sill Height", "value": "3.0", "condition": "greater_than"},
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])
	require.Equal(t, []interface{}{"1002"}, out["element_ids"])

	code, out = post(t, srv, "/elements/filter", map[string]interface{}{
		"category_name": "windows",
		"parameters": []map[string]string{
			{"name": "Comments", "value": "", "condition": "is_empty"},
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []interface{}{"1001"}, out["element_ids"])
}

func TestFilterEqualsOnLengthAcceptsFeetInches(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/elements/filter", map[string]interface{}{
		"category_name": "windows",
		"parameters": []map[string]string{
			{"name": "Sill Height", "value": `2' 3"`, "condition": "equals"},
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])
	require.Equal(t, []interface{}{"1001"}, out["element_ids"])
}

func TestFilterRejectsUnknownCondition(t *testing.T) {
	srv := newTestServer(t)
	code, _ := post(t, srv, "/elements/filter", map[string]interface{}{
		"category_name": "windows",
		"parameters": []map[string]string{
			{"name": "Mark", "value": "W", "condition": "regex"},
		},
	})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGetProperties(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/elements/get_properties", map[string]interface{}{
		"element_ids":     []string{"1001", "9999"},
		"parameter_names": []string{"Mark"},
	})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])
	require.Equal(t, []interface{}{"9999"}, out["missing_element_ids"])

	els := out["elements"].([]interface{})
	first := els[0].(map[string]interface{})
	require.Equal(t, map[string]interface{}{"Mark": "W-01"}, first["parameters"])
}

func TestUpdateParametersCommit(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/elements/update_parameters", map[string]interface{}{
		"updates": []map[string]interface{}{
			{"element_id": "1001", "parameters": map[string]interface{}{
				"Sill Height": `3' 6"`,
				"Mark":        "W-10",
			}},
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", out["status"])
	require.Equal(t, "committed", out["transaction"])
	require.EqualValues(t, 2, out["updated_count"])

	_, props := post(t, srv, "/elements/get_properties", map[string]interface{}{
		"element_ids": []string{"1001"},
	})
	el := props["elements"].([]interface{})[0].(map[string]interface{})
	params := el["parameters"].(map[string]interface{})
	require.InDelta(t, 3.5, params["Sill Height"].(float64), 1e-9)
}

func TestUpdateParametersRollback(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/elements/update_parameters", map[string]interface{}{
		"updates": []map[string]interface{}{
			{"element_id": "2001", "parameters": map[string]interface{}{
				"Area": 200.0, // read-only
			}},
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "error", out["status"])
	require.Equal(t, "rolled_back", out["transaction"])
	require.EqualValues(t, 0, out["updated_count"])

	_, props := post(t, srv, "/elements/get_properties", map[string]interface{}{
		"element_ids": []string{"2001"},
	})
	el := props["elements"].([]interface{})[0].(map[string]interface{})
	params := el["parameters"].(map[string]interface{})
	require.InDelta(t, 120.5, params["Area"].(float64), 1e-9)
}

func TestExportView(t *testing.T) {
	srv := newTestServer(t)
	code, out := post(t, srv, "/export_revit_view",
		map[string]string{"view_name": "Level 1 Plan"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "image/png", out["content_type"])
	require.NotEmpty(t, out["image_base64"])

	code, _ = post(t, srv, "/export_revit_view",
		map[string]string{"view_name": "Missing"})
	require.Equal(t, http.StatusNotFound, code)
}

func TestNoDocumentReturns503(t *testing.T) {
	srv := httptest.NewServer(NewServer(revit.NewEmptySession(), nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + RoutePrefix + "/project_info")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

package tools

import "revitmcp/internal/runner"

// Definitions returns the tool specs handed to the provider adapters.
func Definitions() []runner.ToolDefinition {
	elementIDs := map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Revit element IDs as strings.",
	}
	return []runner.ToolDefinition{
		{
			Name:        "get_revit_project_info",
			Description: "Get metadata about the currently open Revit project: name, number, file path, Revit version.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "get_elements_by_category",
			Description: "List all elements of a Revit category (e.g. Windows, Doors, Walls). The result is stored for later reference by name.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"category_name": map[string]interface{}{
						"type":        "string",
						"description": "Category name, loose spellings accepted (windows, OST_Windows, Wall).",
					},
				},
				"required": []string{"category_name"},
			},
		},
		{
			Name:        "select_elements_by_id",
			Description: "Select specific elements in the Revit UI by their element IDs.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"element_ids": elementIDs,
				},
				"required": []string{"element_ids"},
			},
		},
		{
			Name:        "select_stored_elements",
			Description: "Select a previously stored element set by its storage name and zoom the view to it. Use list_stored_elements to see what is available.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"storage_name": map[string]interface{}{
						"type":        "string",
						"description": "Name of the stored set, loose matches allowed.",
					},
				},
				"required": []string{"storage_name"},
			},
		},
		{
			Name:        "list_stored_elements",
			Description: "List the element sets stored in this session with their counts and storage keys.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "filter_elements",
			Description: "Find elements of a category matching a level and/or parameter conditions. The result is stored under a qualified name.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"category_name": map[string]interface{}{"type": "string"},
					"level_name":    map[string]interface{}{"type": "string"},
					"parameters": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name":  map[string]interface{}{"type": "string"},
								"value": map[string]interface{}{"type": "string"},
								"condition": map[string]interface{}{
									"type": "string",
									"enum": []string{"equals", "contains", "startswith", "endswith", "greater_than", "less_than", "is_empty", "is_not_empty"},
								},
							},
							"required": []string{"name", "value"},
						},
					},
				},
				"required": []string{"category_name"},
			},
		},
		{
			Name:        "get_element_properties",
			Description: "Read parameter values of specific elements, optionally restricted to named parameters.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"element_ids": elementIDs,
					"parameter_names": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"element_ids"},
			},
		},
		{
			Name:        "update_element_parameters",
			Description: "Write parameter values on elements. Lengths accept feet-inches notation like 2' 3\". All writes happen in one transaction that rolls back if nothing succeeds.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"updates": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"element_id": map[string]interface{}{"type": "string"},
								"parameters": map[string]interface{}{
									"type":        "object",
									"description": "parameter name to new value",
								},
							},
							"required": []string{"element_id", "parameters"},
						},
					},
				},
				"required": []string{"updates"},
			},
		},
		{
			Name:        "export_revit_view",
			Description: "Export a named Revit view as a PNG image, returned base64 encoded.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"view_name": map[string]interface{}{"type": "string"},
				},
				"required": []string{"view_name"},
			},
		},
		{
			Name:        "plan_and_execute_workflow",
			Description: "Execute a multi-step plan of tool calls in order. Later steps may reference earlier results with ${step_N_field} placeholders, e.g. ${step_1_element_ids}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"user_request": map[string]interface{}{
						"type":        "string",
						"description": "The user's request this plan fulfills.",
					},
					"steps": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"tool":        map[string]interface{}{"type": "string"},
								"params":      map[string]interface{}{"type": "object"},
								"description": map[string]interface{}{"type": "string"},
							},
							"required": []string{"tool"},
						},
					},
				},
				"required": []string{"user_request", "steps"},
			},
		},
	}
}

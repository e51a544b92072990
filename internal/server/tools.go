package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageProperties are the two ways a tool can address an image: by its
// position in the loaded folder or by path.
func imageProperties() map[string]interface{} {
	return map[string]interface{}{
		"index": map[string]interface{}{
			"type":        "integer",
			"description": "Index of the image in the loaded folder (0-based)",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file. Used when index is not given",
		},
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Catalog
		{
			Name:        "catalog_load",
			Description: "Load a folder of camera-trap images (.jpg, .jpeg, .png, .tiff, .tif). Replaces the previously loaded folder and returns the sorted image list.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": map[string]interface{}{
						"type":        "string",
						"description": "Path to the folder",
					},
				},
				"required": []string{"folder"},
			},
		},
		{
			Name:        "image_info",
			Description: "Get file name, size, dimensions and merged metadata for an image. Footer fields are read from the telemetry band when the sidecar and embedded metadata lack them.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},

		// Metadata
		{
			Name:        "metadata_get",
			Description: "Get the merged metadata record of an image. Sidecar values win over embedded EXIF values, which win over values read from the footer.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "metadata_save",
			Description: "Save a metadata record to the image's sidecar file and, for JPEG images, to its embedded EXIF block. A backup of the original image is kept the first time it is rewritten.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(imageProperties(), map[string]interface{}{
					"metadata": map[string]interface{}{
						"type":                 "object",
						"description":          "Key/value pairs to save, e.g. {\"Species\": \"Leopard\", \"Count\": \"1\"}. Blank values are dropped",
						"additionalProperties": map[string]interface{}{"type": "string"},
					},
				}),
				"required": []string{"metadata"},
			},
		},

		// Footer
		{
			Name:        "footer_detect",
			Description: "Locate the dark telemetry band at the bottom of a frame and list the regions that extraction would try, in order.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "footer_extract",
			Description: "Read date, time, temperature and camera ID from the footer band with the configured oracle. Stops at the first region that yields any field.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "footer_parse",
			Description: "Parse raw footer text, e.g. \"2024/04/16 14:14:59 21C 70F CT10\", into DateTime, Temperature_C, Temperature_F and Camera_ID.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Footer text as read by OCR",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "footer_suggest_correction",
			Description: "Pick the best of several OCR readings of a footer and fix common recognition errors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ocr_results": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Candidate readings of the same footer",
					},
				},
				"required": []string{"ocr_results"},
			},
		},
		{
			Name:        "footer_debug",
			Description: "Save grayscale and OCR-preprocessed PNGs of every footer region with brightness statistics and, when Tesseract is available, the text read from each.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(imageProperties(), map[string]interface{}{
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for the PNG files. Defaults to the image's folder",
					},
				}),
			},
		},

		// Species
		{
			Name:        "species_identify",
			Description: "Identify animals inside a selected rectangle of an image with a vision model. Optionally write the result into the image's metadata.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(imageProperties(), map[string]interface{}{
					"selection": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"x":      map[string]interface{}{"type": "integer"},
							"y":      map[string]interface{}{"type": "integer"},
							"width":  map[string]interface{}{"type": "integer"},
							"height": map[string]interface{}{"type": "integer"},
						},
						"required":    []string{"x", "y", "width", "height"},
						"description": "Rectangle in image pixels",
					},
					"save": map[string]interface{}{
						"type":        "boolean",
						"description": "Apply the identification to the metadata record and save it. Default false",
						"default":     false,
					},
				}),
				"required": []string{"selection"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/catalog"
	"github.com/ironsheep/camtrap-metadata/internal/footer"
	"github.com/ironsheep/camtrap-metadata/internal/imaging"
	"github.com/ironsheep/camtrap-metadata/internal/metadata"
	"github.com/ironsheep/camtrap-metadata/internal/species"
	"github.com/ironsheep/camtrap-metadata/internal/vision"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "catalog_load", "metadata_get").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithFields(logrus.Fields{"tool": params.Name, "error": err}).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Catalog
	case "catalog_load":
		return s.handleCatalogLoad(args)
	case "image_info":
		return s.handleImageInfo(ctx, args)

	// Metadata
	case "metadata_get":
		return s.handleMetadataGet(ctx, args)
	case "metadata_save":
		return s.handleMetadataSave(args)

	// Footer
	case "footer_detect":
		return s.handleFooterDetect(args)
	case "footer_extract":
		return s.handleFooterExtract(ctx, args)
	case "footer_parse":
		return s.handleFooterParse(args)
	case "footer_suggest_correction":
		return s.handleFooterSuggestCorrection(args)
	case "footer_debug":
		return s.handleFooterDebug(ctx, args)

	// Species
	case "species_identify":
		return s.handleSpeciesIdentify(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// imageRef addresses an image by catalog index or by path.
type imageRef struct {
	Index *int   `json:"index"`
	Path  string `json:"path"`
}

var errNoImage = errors.New("index or path is required")

func (s *Server) resolvePath(ref imageRef) (string, error) {
	if ref.Index != nil {
		entry, err := s.catalog.Get(*ref.Index)
		if err != nil {
			return "", err
		}
		return entry.Path, nil
	}
	if ref.Path == "" {
		return "", errNoImage
	}
	return filepath.Abs(ref.Path)
}

// === Catalog Handlers ===

type catalogLoadArgs struct {
	Folder string `json:"folder"`
}

type catalogLoadResult struct {
	Folder string          `json:"folder"`
	Count  int             `json:"count"`
	Images []catalog.Image `json:"images"`
}

func (s *Server) handleCatalogLoad(args json.RawMessage) (interface{}, error) {
	var a catalogLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Folder == "" {
		return nil, errors.New("folder is required")
	}
	n, err := s.catalog.Load(a.Folder)
	if err != nil {
		return nil, err
	}
	return catalogLoadResult{Folder: s.catalog.Folder(), Count: n, Images: s.catalog.Images()}, nil
}

type imageInfoResult struct {
	Path          string           `json:"path"`
	Filename      string           `json:"filename"`
	FileSizeBytes int64            `json:"file_size_bytes"`
	SizeMB        float64          `json:"size_mb"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	Dimensions    string           `json:"dimensions"`
	Format        string           `json:"format"`
	Index         int              `json:"index"`
	Total         int              `json:"total"`
	Metadata      *metadata.Record `json:"metadata"`
}

func (s *Server) handleImageInfo(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageRef
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.resolvePath(a)
	if err != nil {
		return nil, err
	}
	info, err := imaging.Describe(path)
	if err != nil {
		return nil, err
	}
	rec, err := s.engine.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	index := -1
	if entry, ok := s.catalog.Lookup(path); ok {
		index = entry.Index
	}
	return imageInfoResult{
		Path:          path,
		Filename:      filepath.Base(path),
		FileSizeBytes: info.FileSizeBytes,
		SizeMB:        math.Round(float64(info.FileSizeBytes)/(1024*1024)*100) / 100,
		Width:         info.Width,
		Height:        info.Height,
		Dimensions:    fmt.Sprintf("%d x %d", info.Width, info.Height),
		Format:        info.Format,
		Index:         index,
		Total:         s.catalog.Len(),
		Metadata:      rec,
	}, nil
}

// === Metadata Handlers ===

func (s *Server) handleMetadataGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageRef
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.resolvePath(a)
	if err != nil {
		return nil, err
	}
	return s.engine.Get(ctx, path)
}

type metadataSaveArgs struct {
	imageRef
	Metadata *metadata.Record `json:"metadata"`
}

type metadataSaveResult struct {
	metadata.SaveResult
	Path          string `json:"path"`
	Fields        int    `json:"fields_saved"`
	EmbeddedError string `json:"embedded_error,omitempty"`
}

func (s *Server) handleMetadataSave(args json.RawMessage) (interface{}, error) {
	var a metadataSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Metadata == nil {
		return nil, errors.New("metadata is required")
	}
	path, err := s.resolvePath(a.imageRef)
	if err != nil {
		return nil, err
	}
	return s.save(path, a.Metadata)
}

func (s *Server) save(path string, rec *metadata.Record) (metadataSaveResult, error) {
	res, err := s.engine.Save(path, rec)
	if err != nil {
		return metadataSaveResult{}, err
	}
	s.cache.Evict(path)

	out := metadataSaveResult{SaveResult: res, Path: path, Fields: rec.Len()}
	if res.EmbeddedErr != nil {
		out.EmbeddedError = res.EmbeddedErr.Error()
	}
	return out, nil
}

// === Footer Handlers ===

type footerDetectResult struct {
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Boundary   imaging.Boundary    `json:"boundary"`
	Band       imaging.BandStats   `json:"band"`
	Hypotheses []footer.Hypothesis `json:"hypotheses"`
}

func (s *Server) handleFooterDetect(args json.RawMessage) (interface{}, error) {
	var a imageRef
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.resolvePath(a)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	boundary := imaging.DetectFooter(img)
	band, err := imaging.Crop(img, imaging.Region{X1: b.Min.X, Y1: b.Min.Y + boundary.Start, X2: b.Max.X, Y2: b.Max.Y})
	if err != nil {
		return nil, err
	}
	return footerDetectResult{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Boundary:   boundary,
		Band:       imaging.MeasureBand(band),
		Hypotheses: footer.Hypotheses(boundary, b.Dy()),
	}, nil
}

func (s *Server) handleFooterExtract(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageRef
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.resolvePath(a)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return s.extractor.Run(ctx, img)
}

type footerParseArgs struct {
	Text string `json:"text"`
}

func (s *Server) handleFooterParse(args json.RawMessage) (interface{}, error) {
	var a footerParseArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.parser.Analyze(a.Text), nil
}

type footerSuggestArgs struct {
	OCRResults []string `json:"ocr_results"`
}

func (s *Server) handleFooterSuggestCorrection(args json.RawMessage) (interface{}, error) {
	var a footerSuggestArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sug := footer.SuggestCorrection(a.OCRResults, s.corrections)
	return struct {
		footer.Suggestion
		Parsed footer.Analysis `json:"parsed"`
	}{sug, s.parser.Analyze(sug.Text)}, nil
}

type footerDebugArgs struct {
	imageRef
	OutputDir string `json:"output_dir"`
}

func (s *Server) handleFooterDebug(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a footerDebugArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.resolvePath(a.imageRef)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	dir := a.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}

	d := footer.Debugger{Recognizer: s.recognizer, Parser: s.parser, Log: s.log}
	return d.Run(ctx, img, path, dir)
}

// === Species Handlers ===

type speciesIdentifyArgs struct {
	imageRef
	Selection *species.Selection `json:"selection"`
	Save      bool               `json:"save"`
}

type speciesIdentifyResult struct {
	Identification *species.Identification `json:"identification"`
	Saved          *metadataSaveResult     `json:"saved,omitempty"`
}

func (s *Server) handleSpeciesIdentify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a speciesIdentifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Selection == nil {
		return nil, errors.New("selection is required")
	}
	if s.identifier == nil {
		return nil, fmt.Errorf("%w: species identification is not configured", vision.ErrUnavailable)
	}
	path, err := s.resolvePath(a.imageRef)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}

	id, err := s.identifier.Identify(ctx, img, *a.Selection)
	if err != nil {
		return nil, err
	}
	result := speciesIdentifyResult{Identification: id}
	if !a.Save {
		return result, nil
	}

	rec, err := s.engine.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	id.Apply(rec)
	saved, err := s.save(path, rec)
	if err != nil {
		return nil, err
	}
	result.Saved = &saved
	return result, nil
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/catalog"
	"github.com/ironsheep/camtrap-metadata/internal/footer"
	"github.com/ironsheep/camtrap-metadata/internal/imaging"
	"github.com/ironsheep/camtrap-metadata/internal/metadata"
	"github.com/ironsheep/camtrap-metadata/internal/species"
)

// Name and Version are reported in the initialize handshake.
const (
	Name    = "camtrap-metadata"
	Version = "0.1.0"
)

// Server handles MCP protocol communication
type Server struct {
	cache       *imaging.ImageCache
	catalog     *catalog.Catalog
	engine      *metadata.Engine
	oracle      footer.Oracle
	extractor   *footer.Extractor
	parser      *footer.Parser
	recognizer  footer.TextRecognizer
	identifier  *species.Identifier
	corrections footer.Corrections
	log         logrus.FieldLogger

	in  io.Reader
	out io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithCache shares an image cache between the catalog, the extractor and
// the handlers.
func WithCache(c *imaging.ImageCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithOracle reads footers with oracle.
func WithOracle(oracle footer.Oracle) Option {
	return func(s *Server) { s.oracle = oracle }
}

// WithRecognizer sets the raw-text recognizer used by footer_debug.
func WithRecognizer(r footer.TextRecognizer) Option {
	return func(s *Server) { s.recognizer = r }
}

// WithIdentifier enables species_identify.
func WithIdentifier(id *species.Identifier) Option {
	return func(s *Server) { s.identifier = id }
}

// WithCorrections replaces the default OCR correction dictionary.
func WithCorrections(c footer.Corrections) Option {
	return func(s *Server) { s.corrections = c }
}

// WithLogger sets the logger. Logs must not go to stdout.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance. Without WithOracle, footer
// extraction reports the oracle as unavailable.
func New(opts ...Option) *Server {
	s := &Server{
		cache:       imaging.NewImageCache(),
		parser:      footer.NewParser(),
		corrections: footer.DefaultCorrections(),
		log:         logrus.StandardLogger(),
		in:          os.Stdin,
		out:         os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.extractor = footer.NewExtractor(s.oracle, footer.WithCache(s.cache), footer.WithLogger(s.log))
	s.catalog = catalog.New(catalog.WithCache(s.cache), catalog.WithLogger(s.log))
	s.engine = metadata.NewEngine(metadata.WithFooter(s.extractor), metadata.WithLogger(s.log))
	return s
}

// Run reads requests line by line until input ends or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    Name,
				"version": Version,
			},
		},
	}
}

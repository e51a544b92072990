// Package server implements the MCP (Model Context Protocol) server for
// camera-trap metadata tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Catalog:
//   - catalog_load: Load a folder of images
//   - image_info: File details plus merged metadata
//
// Metadata:
//   - metadata_get: Merged sidecar, EXIF and footer record
//   - metadata_save: Write sidecar and embedded EXIF
//
// Footer:
//   - footer_detect: Locate the telemetry band
//   - footer_extract: Read footer fields with the configured oracle
//   - footer_parse: Parse raw footer text
//   - footer_suggest_correction: Clean up OCR readings
//   - footer_debug: Dump footer regions as PNG
//
// Species:
//   - species_identify: Identify animals in a selection
//
// Images are addressed either by index into the loaded folder or by path.
//
// # Image Caching
//
// Decoded images are cached by path and shared with the footer extractor.
// The cache is cleared when a folder is loaded and an entry is evicted after
// its file is rewritten by a save.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// An unavailable oracle is not an error for metadata_get and image_info; the
// record is returned without footer fields. footer_extract does report it.
//
// Logs go to the configured logger and never to stdout.
package server

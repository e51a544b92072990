// Package imaging provides the pixel-level operations behind footer metadata
// extraction: decoding and caching camera-trap frames, locating the burned-in
// telemetry band, cropping region hypotheses and preparing strips for text
// recognition.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner.
// Regions use an inclusive top-left (X1,Y1) and an exclusive bottom-right
// (X2,Y2). Footer boundaries are expressed as a start row and a height, so the
// band covers rows [Start, Start+Height).
//
// # Footer Detection
//
// DetectFooter converts a frame to grayscale and walks rows upward from the
// bottom edge. A row belongs to the footer when it is dark and either uniform
// (a solid band) or high-spread (light text on the band). The walk is bounded
// to the bottom of the frame so dark scene content higher up cannot be taken
// for telemetry. Detection never fails: weak or degenerate bands fall back to
// the bottom 8% of the frame.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless.
package imaging

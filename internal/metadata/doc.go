// Package metadata stores and merges camera-trap image metadata.
//
// Three sources feed a record, in strict precedence:
//
//  1. the sidecar, a "<image>_metadata.txt" file of "key: value" lines
//  2. the image's embedded EXIF block
//  3. fields read from the telemetry footer burned into the frame
//
// A higher source always wins key by key, and the footer is consulted only
// while Temperature_C, Temperature_F or Camera_ID is still missing, so
// repeated reads of an unchanged image return the same record.
//
// # Embedded Block
//
// Curated metadata is written to EXIF UserComment as "CTME:" followed by
// "Key: Value" pairs joined with " | ". A fixed subset is duplicated into
// IFD0 string tags for generic viewers:
//
//	Species         -> ImageDescription
//	Scientific_Name -> Software
//	Count           -> Artist
//	Behavior        -> Copyright
//	Location        -> Make
//	Weather         -> Model
//
// The comment is capped at 500 characters and each duplicated value at 100.
package metadata

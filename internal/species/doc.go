// Package species identifies animals in a user-selected part of a frame by
// asking a vision model with a location-aware prompt.
package species

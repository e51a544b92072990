package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	exifw "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// ErrEmbeddedUnsupported is returned when the embedded block of a file type
// cannot be rewritten in place.
var ErrEmbeddedUnsupported = errors.New("embedded metadata write not supported for this format")

const (
	markerPrefix    = "CTME:"
	markerSeparator = " | "
	maxMarkerLen    = 500
	maxSlotLen      = 100
	maxStandardLen  = 200
	exifTimestamp   = "2006:01:02 15:04:05"
	backupSuffix    = ".backup"
)

// Standard EXIF fields surfaced under a renamed key when the file carries no
// marker comment.
var standardRenames = map[exif.FieldName]Key{
	exif.Make:             "Camera_Make",
	exif.Model:            "Camera_Model",
	exif.Software:         "Camera_Software",
	exif.ImageDescription: "Original_Description",
	exif.Artist:           "Original_Artist",
	exif.Copyright:        "Original_Copyright",
}

// Reserved keys duplicated into standard IFD0 string tags on write.
var slotMapping = []struct {
	key Key
	tag string
}{
	{Species, "ImageDescription"},
	{ScientificName, "Software"},
	{Count, "Artist"},
	{Behavior, "Copyright"},
	{Location, "Make"},
	{Weather, "Model"},
}

var keyVariants = map[Key]Key{
	"Scientific Name": ScientificName,
	"scientific_name": ScientificName,
}

// UserComment character-code prefixes defined by EXIF.
var commentCharsets = [][]byte{
	[]byte("ASCII\x00\x00\x00"),
	[]byte("UNICODE\x00"),
	[]byte("JIS\x00\x00\x00\x00\x00"),
	make([]byte, 8),
}

// ReadEmbedded loads the embedded metadata of the image at path.
//
// When the EXIF UserComment carries the CTME marker, only the marker pairs
// are returned and every other EXIF field is suppressed. Otherwise standard
// fields are surfaced, with camera identity, authorship and any tag named like
// a reserved key renamed so they cannot be mistaken for curated values. Files that cannot carry EXIF
// yield an empty record.
func ReadEmbedded(path string) (*Record, error) {
	if !imaging.HasEXIFContainer(path) {
		return NewRecord(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return NewRecord(), fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return decodeEmbedded(f)
}

func decodeEmbedded(r io.Reader) (*Record, error) {
	x, err := exif.Decode(r)
	if x == nil {
		return NewRecord(), fmt.Errorf("failed to decode exif: %w", err)
	}

	if comment, ok := userComment(x); ok && strings.HasPrefix(comment, markerPrefix) {
		return ParseMarkerComment(comment), nil
	}

	w := standardWalker{fields: make(Fields)}
	if err := x.Walk(w); err != nil {
		return NewRecord(), fmt.Errorf("failed to walk exif: %w", err)
	}
	return RecordFrom(w.fields), nil
}

func userComment(x *exif.Exif) (string, bool) {
	tag, err := x.Get(exif.UserComment)
	if err != nil {
		return "", false
	}
	raw := tag.Val
	for _, cs := range commentCharsets {
		if bytes.HasPrefix(raw, cs) {
			raw = raw[len(cs):]
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(string(raw), "\x00")), true
}

type standardWalker struct {
	fields Fields
}

func (w standardWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if name == exif.UserComment || name == exif.MakerNote {
		return nil
	}

	var value string
	switch tag.Format() {
	case tiff.UndefVal, tiff.OtherVal:
		return nil
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		value = s
	default:
		value = tag.String()
	}

	value = strings.Trim(strings.TrimSpace(strings.TrimRight(value, "\x00")), `"`)
	if value == "" || len(value) > maxStandardLen {
		return nil
	}

	key := standardKey(name)
	if _, exists := w.fields[key]; !exists {
		w.fields[key] = value
	}
	return nil
}

// standardKey maps a standard EXIF field to its record key. Fields whose
// names collide with a reserved key, such as the camera's own DateTime, get a
// "Camera_" prefix.
func standardKey(name exif.FieldName) Key {
	if renamed, ok := standardRenames[name]; ok {
		return renamed
	}
	key := Key(name)
	if key.Reserved() {
		return "Camera_" + key
	}
	return key
}

// ParseMarkerComment decodes a "CTME:key: value | key: value" comment.
// Pairs without a colon or with an empty key or value are dropped.
func ParseMarkerComment(comment string) *Record {
	rec := NewRecord()
	body := strings.TrimPrefix(comment, markerPrefix)
	for _, pair := range strings.Split(body, markerSeparator) {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		rec.Set(Key(strings.TrimSpace(key)), value)
	}
	return rec
}

// FormatMarkerComment encodes rec as a CTME comment, truncated to 500
// characters with a trailing ellipsis. An empty record encodes to "".
func FormatMarkerComment(rec *Record) string {
	var parts []string
	for _, k := range rec.Keys() {
		if v := rec.Value(k); v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", k, singleLine(v)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return truncate(markerPrefix+strings.Join(parts, markerSeparator), maxMarkerLen)
}

// SlotValues returns the standard IFD0 tag values written for rec, keyed by
// EXIF tag name, each truncated to 100 characters.
func SlotValues(rec *Record) map[string]string {
	normalized := make(map[Key]string, rec.Len())
	for _, k := range rec.Keys() {
		nk := k
		if v, ok := keyVariants[k]; ok {
			nk = v
		}
		if _, exists := normalized[nk]; !exists || nk == k {
			normalized[nk] = rec.Value(k)
		}
	}

	out := make(map[string]string)
	for _, s := range slotMapping {
		if v := normalized[s.key]; v != "" {
			out[s.tag] = truncate(singleLine(v), maxSlotLen)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// WriteEmbedded rewrites the EXIF block of the JPEG at path with the marker
// comment, the slot values and a DateTimeOriginal stamp of now. Other EXIF
// tags already in the file are preserved and pixel data is not re-encoded.
// A one-time "<path>.backup" copy is made before the first rewrite.
//
// Files other than JPEG return ErrEmbeddedUnsupported.
func WriteEmbedded(path string, rec *Record, now time.Time) error {
	if !imaging.IsJPEG(path) {
		return fmt.Errorf("%w: %s", ErrEmbeddedUnsupported, filepath.Ext(path))
	}

	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	payload, err := buildExif(data, rec, now)
	if err != nil {
		return err
	}
	out, err := spliceExif(data, payload)
	if err != nil {
		return err
	}

	if err := backupOnce(path); err != nil {
		return err
	}
	return replaceFile(path, out, st.Mode().Perm())
}

func buildExif(jpegData []byte, rec *Record, now time.Time) (payload []byte, err error) {
	// go-exif reports some malformed input by panicking.
	defer func() {
		if state := recover(); state != nil {
			err = fmt.Errorf("failed to encode exif: %v", state)
		}
	}()

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("failed to create ifd mapping: %w", err)
	}
	ti := exifw.NewTagIndex()

	ib := existingBuilder(im, ti, jpegData)
	if ib == nil {
		ib = exifw.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	}

	for tag, value := range SlotValues(rec) {
		if err := ib.SetStandardWithName(tag, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", tag, err)
		}
	}

	exifIb, err := exifw.GetOrCreateIbFromRootIb(ib, "IFD/Exif")
	if err != nil {
		return nil, fmt.Errorf("failed to get exif ifd: %w", err)
	}
	if comment := FormatMarkerComment(rec); comment != "" {
		uc := exifundefined.Tag9286UserComment{
			EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
			EncodingBytes: []byte(comment),
		}
		if err := exifIb.SetStandardWithName("UserComment", uc); err != nil {
			return nil, fmt.Errorf("failed to set UserComment: %w", err)
		}
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", now.Format(exifTimestamp)); err != nil {
		return nil, fmt.Errorf("failed to set DateTimeOriginal: %w", err)
	}

	payload, err = exifw.NewIfdByteEncoder().EncodeToExif(ib)
	if err != nil {
		return nil, fmt.Errorf("failed to encode exif: %w", err)
	}
	return payload, nil
}

// existingBuilder returns a builder seeded with the EXIF already present in
// jpegData, or nil when there is none or it cannot be parsed.
func existingBuilder(im *exifcommon.IfdMapping, ti *exifw.TagIndex, jpegData []byte) *exifw.IfdBuilder {
	rawExif, err := exifw.SearchAndExtractExif(jpegData)
	if err != nil {
		return nil
	}
	_, index, err := exifw.Collect(im, ti, rawExif)
	if err != nil || index.RootIfd == nil {
		return nil
	}
	return exifw.NewIfdBuilderFromExistingChain(index.RootIfd)
}

var exifHeader = []byte("Exif\x00\x00")

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	maxSegment = 0xFFFF - 2
)

type jpegSegment struct {
	marker byte
	data   []byte
}

// spliceExif replaces the APP1 Exif segment of a JPEG with payload, or
// inserts one after SOI (and any JFIF APP0) when the file has none.
func spliceExif(jpegData, payload []byte) ([]byte, error) {
	segData := append(append([]byte{}, exifHeader...), payload...)
	if len(segData) > maxSegment {
		return nil, fmt.Errorf("exif block too large: %d bytes", len(segData))
	}

	segs, tail, err := splitJPEG(jpegData)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i, s := range segs {
		if s.marker == markerAPP1 && bytes.HasPrefix(s.data, exifHeader) {
			segs[i].data = segData
			replaced = true
			break
		}
	}
	if !replaced {
		at := 0
		if len(segs) > 0 && segs[0].marker == markerAPP0 {
			at = 1
		}
		segs = append(segs[:at], append([]jpegSegment{{marker: markerAPP1, data: segData}}, segs[at:]...)...)
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, markerSOI})
	for _, s := range segs {
		buf.Write([]byte{0xFF, s.marker})
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(s.data)+2))
		buf.Write(length[:])
		buf.Write(s.data)
	}
	buf.Write(tail)
	return buf.Bytes(), nil
}

// splitJPEG returns the header segments between SOI and SOS, and the bytes
// from the SOS marker to the end of the file.
func splitJPEG(data []byte) ([]jpegSegment, []byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, nil, fmt.Errorf("not a JPEG file")
	}

	var segs []jpegSegment
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil, nil, fmt.Errorf("malformed JPEG: expected marker at offset %d", i)
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++
			continue
		}
		if marker == markerSOS {
			return segs, data[i:], nil
		}
		n := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if n < 2 || i+2+n > len(data) {
			return nil, nil, fmt.Errorf("malformed JPEG: bad segment length at offset %d", i)
		}
		segs = append(segs, jpegSegment{marker: marker, data: data[i+4 : i+2+n]})
		i += 2 + n
	}
	return nil, nil, fmt.Errorf("malformed JPEG: no scan data")
}

// BackupPath returns the one-time backup location for an image.
func BackupPath(path string) string {
	return path + backupSuffix
}

func backupOnce(path string) error {
	backup := BackupPath(path)
	if _, err := os.Stat(backup); err == nil {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image for backup: %w", err)
	}
	defer src.Close()

	st, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}

	dst, err := os.OpenFile(backup, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return os.Chtimes(backup, st.ModTime(), st.ModTime())
}

func replaceFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace image: %w", err)
	}
	return nil
}

package metadata

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	exifw "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJPEG writes a small EXIF-less JPEG and returns its path.
func writeJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 10), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// writeCameraJPEG writes a JPEG whose EXIF carries the given IFD0 string tags
// and no marker comment, the way a trail camera leaves it.
func writeCameraJPEG(t *testing.T, dir, name string, tags map[string]string) string {
	t.Helper()
	path := writeJPEG(t, dir, name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	im, err := exifcommon.NewIfdMappingWithStandard()
	require.NoError(t, err)
	ib := exifw.NewIfdBuilder(im, exifw.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	for tag, value := range tags {
		require.NoError(t, ib.SetStandardWithName(tag, value))
	}
	payload, err := exifw.NewIfdByteEncoder().EncodeToExif(ib)
	require.NoError(t, err)

	out, err := spliceExif(data, payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestStandardKey(t *testing.T) {
	assert.Equal(t, Key("Camera_Make"), standardKey(exif.Make))
	assert.Equal(t, Key("Camera_DateTime"), standardKey(exif.DateTime))
	assert.Equal(t, Key("ISOSpeedRatings"), standardKey(exif.ISOSpeedRatings))
}

func TestReadEmbedded_CameraDateTimeDoesNotShadowFooter(t *testing.T) {
	path := writeCameraJPEG(t, t.TempDir(), "IMG_0007.jpg", map[string]string{
		"DateTime": "2024:04:16 14:14:59",
		"Make":     "Browning",
	})

	rec, err := ReadEmbedded(path)
	require.NoError(t, err)
	assert.False(t, rec.Has(DateTime), "camera DateTime must not land on the reserved key")
	assert.Equal(t, "2024:04:16 14:14:59", rec.Value("Camera_DateTime"))
	assert.Equal(t, "Browning", rec.Value("Camera_Make"))

	rec.Fill(Fields{DateTime: "2024-04-16 14:15:00"})
	assert.Equal(t, "2024-04-16 14:15:00", rec.Value(DateTime))
}

func TestParseMarkerComment(t *testing.T) {
	rec := ParseMarkerComment("CTME:Species: Deer | Count: 2 | junk | Notes:  | Time: 08:31:56")
	assert.Equal(t, []Key{Species, Count, "Time"}, rec.Keys())
	assert.Equal(t, "08:31:56", rec.Value("Time"))
}

func TestParseMarkerComment_SinglePair(t *testing.T) {
	rec := ParseMarkerComment("CTME:Species: Deer")
	assert.Equal(t, "Deer", rec.Value(Species))
	assert.Equal(t, 1, rec.Len())
}

func TestFormatMarkerComment(t *testing.T) {
	rec := NewRecord()
	rec.Set(Species, "Deer")
	rec.Set(Count, "2")
	assert.Equal(t, "CTME:Species: Deer | Count: 2", FormatMarkerComment(rec))
	assert.Equal(t, "", FormatMarkerComment(NewRecord()))
}

func TestFormatMarkerComment_Truncates(t *testing.T) {
	rec := NewRecord()
	rec.Set(Notes, strings.Repeat("°", 600))

	got := FormatMarkerComment(rec)
	assert.Equal(t, 500, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, "CTME:Notes: °"))
}

func TestSlotValues(t *testing.T) {
	rec := NewRecord()
	rec.Set(Species, strings.Repeat("x", 150))
	rec.Set("scientific_name", "Odocoileus virginianus")
	rec.Set(Count, "2")
	rec.Set(Weather, "Clear")
	rec.Set(CameraID, "CT10")

	slots := SlotValues(rec)
	assert.Len(t, slots, 4)
	assert.Equal(t, strings.Repeat("x", 97)+"...", slots["ImageDescription"])
	assert.Equal(t, "Odocoileus virginianus", slots["Software"])
	assert.Equal(t, "2", slots["Artist"])
	assert.Equal(t, "Clear", slots["Model"])
}

func TestSlotValues_CanonicalKeyWins(t *testing.T) {
	rec := NewRecord()
	rec.Set(ScientificName, "Lynx rufus")
	rec.Set("Scientific Name", "Other")

	assert.Equal(t, "Lynx rufus", SlotValues(rec)["Software"])
}

func TestSpliceExif(t *testing.T) {
	path := writeJPEG(t, t.TempDir(), "a.jpg")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	first, err := spliceExif(data, []byte("MM\x00\x2aPAYLOAD1"))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(first, exifHeader))

	second, err := spliceExif(first, []byte("MM\x00\x2aPAYLOAD2"))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(second, exifHeader), "existing block is replaced, not duplicated")
	assert.Contains(t, string(second), "PAYLOAD2")
	assert.NotContains(t, string(second), "PAYLOAD1")

	_, err = jpeg.Decode(bytes.NewReader(second))
	assert.NoError(t, err, "pixel data must stay decodable")
}

func TestSpliceExif_RejectsNonJPEG(t *testing.T) {
	_, err := spliceExif([]byte("\x89PNG\r\n\x1a\n"), []byte("x"))
	assert.Error(t, err)
}

func TestEmbedded_RoundTrip(t *testing.T) {
	path := writeJPEG(t, t.TempDir(), "IMG_0003.jpg")
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	rec := NewRecord()
	rec.Set(Species, "Red Fox")
	rec.Set(ScientificName, "Vulpes vulpes")
	rec.Set(TemperatureC, "23°C")
	rec.Set(CameraID, "CT14")

	now := time.Date(2024, 4, 17, 8, 31, 56, 0, time.Local)
	require.NoError(t, WriteEmbedded(path, rec, now))

	loaded, err := ReadEmbedded(path)
	require.NoError(t, err)
	assert.True(t, rec.Equal(loaded), "marker comment round trip: got %v", loaded.Keys())
	assert.False(t, loaded.Has("Camera_Software"), "standard fields are suppressed when the marker is present")

	backup, err := os.ReadFile(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	// A second write leaves the first backup untouched.
	rec.Set(Count, "3")
	require.NoError(t, WriteEmbedded(path, rec, now))
	backup, err = os.ReadFile(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	loaded, err = ReadEmbedded(path)
	require.NoError(t, err)
	assert.Equal(t, "3", loaded.Value(Count))
}

func TestWriteEmbedded_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.tif")
	require.NoError(t, os.WriteFile(path, []byte("II*\x00"), 0o644))

	err := WriteEmbedded(path, NewRecord(), time.Now())
	assert.ErrorIs(t, err, ErrEmbeddedUnsupported)
	_, statErr := os.Stat(BackupPath(path))
	assert.True(t, os.IsNotExist(statErr), "no backup for an unsupported write")
}

func TestReadEmbedded_NoContainer(t *testing.T) {
	rec, err := ReadEmbedded(filepath.Join(t.TempDir(), "frame.png"))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Len())
}

func TestReadEmbedded_NoExif(t *testing.T) {
	path := writeJPEG(t, t.TempDir(), "plain.jpg")

	rec, err := ReadEmbedded(path)
	assert.Error(t, err)
	assert.Equal(t, 0, rec.Len())
}

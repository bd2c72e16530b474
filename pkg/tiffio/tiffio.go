// Package tiffio encodes and decodes single-channel 32-bit floating point
// TIFF images, the interchange format for augmented samples. Standard TIFF
// libraries for Go do not handle SampleFormat=IEEEFP, so the float codec
// is implemented directly; it writes baseline little-endian single-strip
// files that PIL, tifffile and ImageJ read back bit-exactly.
package tiffio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"
)

// TIFF tag IDs used by the baseline float encoding
const (
	tagImageWidth    = 256
	tagImageLength   = 257
	tagBitsPerSample = 258
	tagCompression   = 259
	tagPhotometric   = 262
	tagStripOffsets  = 273
	tagSamplesPerPx  = 277
	tagRowsPerStrip  = 278
	tagStripBytes    = 279
	tagSampleFormat  = 339
)

const (
	typeShort = 3
	typeLong  = 4

	compressionNone = 1
	photometricMin  = 1 // BlackIsZero
	sampleFormatFP  = 3 // IEEE floating point
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	value uint32
}

// Encode writes pix as a grayscale float32 TIFF. pix is row-major with
// height rows of width samples.
func Encode(w io.Writer, pix []float32, width, height int) error {
	if len(pix) != width*height {
		return fmt.Errorf("pixel count %d does not match %dx%d", len(pix), width, height)
	}

	dataBytes := uint32(4 * width * height)
	ifdOffset := uint32(8) + dataBytes

	// header: byte order, magic 42, offset of the single IFD
	hdr := make([]byte, 8)
	copy(hdr, "II")
	binary.LittleEndian.PutUint16(hdr[2:], 42)
	binary.LittleEndian.PutUint32(hdr[4:], ifdOffset)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, pix); err != nil {
		return err
	}

	entries := []ifdEntry{
		{tagImageWidth, typeLong, uint32(width)},
		{tagImageLength, typeLong, uint32(height)},
		{tagBitsPerSample, typeShort, 32},
		{tagCompression, typeShort, compressionNone},
		{tagPhotometric, typeShort, photometricMin},
		{tagStripOffsets, typeLong, 8},
		{tagSamplesPerPx, typeShort, 1},
		{tagRowsPerStrip, typeLong, uint32(height)},
		{tagStripBytes, typeLong, dataBytes},
		{tagSampleFormat, typeShort, sampleFormatFP},
	}

	ifd := new(bytes.Buffer)
	binary.Write(ifd, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(ifd, binary.LittleEndian, e.tag)
		binary.Write(ifd, binary.LittleEndian, e.typ)
		binary.Write(ifd, binary.LittleEndian, uint32(1))
		if e.typ == typeShort {
			binary.Write(ifd, binary.LittleEndian, uint16(e.value))
			binary.Write(ifd, binary.LittleEndian, uint16(0))
		} else {
			binary.Write(ifd, binary.LittleEndian, e.value)
		}
	}
	binary.Write(ifd, binary.LittleEndian, uint32(0)) // no next IFD

	_, err := w.Write(ifd.Bytes())
	return err
}

// Decode reads a grayscale float32 TIFF written by Encode (or any baseline
// uncompressed single-strip IEEEFP file in either byte order).
func Decode(r io.Reader) (pix []float32, width, height int, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(raw) < 8 {
		return nil, 0, 0, fmt.Errorf("truncated TIFF")
	}

	var order binary.ByteOrder
	switch string(raw[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, 0, fmt.Errorf("not a TIFF file")
	}
	if order.Uint16(raw[2:]) != 42 {
		return nil, 0, 0, fmt.Errorf("not a TIFF file")
	}

	ifdOffset := order.Uint32(raw[4:])
	if int(ifdOffset)+2 > len(raw) {
		return nil, 0, 0, fmt.Errorf("IFD offset out of range")
	}
	n := int(order.Uint16(raw[ifdOffset:]))

	tags := map[uint16]uint32{}
	for i := 0; i < n; i++ {
		off := int(ifdOffset) + 2 + 12*i
		if off+12 > len(raw) {
			return nil, 0, 0, fmt.Errorf("truncated IFD")
		}
		tag := order.Uint16(raw[off:])
		typ := order.Uint16(raw[off+2:])
		count := order.Uint32(raw[off+4:])
		if count != 1 {
			return nil, 0, 0, fmt.Errorf("unsupported TIFF layout (tag %d count %d)", tag, count)
		}
		var val uint32
		if typ == typeShort {
			val = uint32(order.Uint16(raw[off+8:]))
		} else {
			val = order.Uint32(raw[off+8:])
		}
		tags[tag] = val
	}

	if c, ok := tags[tagCompression]; ok && c != compressionNone {
		return nil, 0, 0, fmt.Errorf("unsupported TIFF compression %d", c)
	}
	if tags[tagSampleFormat] != sampleFormatFP || tags[tagBitsPerSample] != 32 {
		return nil, 0, 0, fmt.Errorf("not a float32 TIFF")
	}

	width = int(tags[tagImageWidth])
	height = int(tags[tagImageLength])
	offset := int(tags[tagStripOffsets])
	size := 4 * width * height
	if width <= 0 || height <= 0 || offset+size > len(raw) {
		return nil, 0, 0, fmt.Errorf("invalid float32 TIFF geometry")
	}

	pix = make([]float32, width*height)
	for i := range pix {
		pix[i] = math.Float32frombits(order.Uint32(raw[offset+4*i:]))
	}
	return pix, width, height, nil
}

// Write encodes pix to a float32 TIFF file at path
func Write(path string, pix []float32, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := Encode(f, pix, width, height); err != nil {
		f.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return f.Close()
}

// Read decodes a float32 TIFF file
func Read(path string) (pix []float32, width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	return Decode(f)
}

// WritePreview saves a viewer-friendly Gray16 rendition of a float sample,
// clamping values to [0,1] and scaling to the full 16-bit range
func WritePreview(path string, pix []float32, width, height int) error {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float64(pix[y*width+x])
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v*65535)))})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return f.Close()
}

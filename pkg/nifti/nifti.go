// Package nifti reads and writes NIfTI-1 volumes (.nii and .nii.gz) and
// their .deeprad normalization sidecar files.
// Only the fields needed to recover the voxel array are interpreted; the
// spatial transform, intent and unit fields are carried but ignored.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nii2img/internal/models"
)

// headerSize is the fixed size of a NIfTI-1 header in bytes
const headerSize = 348

// Voxel datatype codes from the NIfTI-1 standard
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtUint16  = 512
)

// nifti1Header mirrors the on-disk NIfTI-1 header layout
type nifti1Header struct {
	SizeofHdr     int32
	DataTypeName  [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Glob returns the sorted .nii.gz files of a folder followed by its sorted
// .nii files. The two groups are kept separate so that matched folders
// listing the same extensions enumerate subjects in the same order.
func Glob(folder string) ([]string, error) {
	gz, err := filepath.Glob(filepath.Join(folder, "*.nii.gz"))
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", folder, err)
	}
	plain, err := filepath.Glob(filepath.Join(folder, "*.nii"))
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", folder, err)
	}
	sort.Strings(gz)
	sort.Strings(plain)
	return append(gz, plain...), nil
}

// ReadVolume reads the voxel array of a NIfTI-1 file as float32 without
// applying any normalization. Gzip compression is detected from the file
// contents, not the extension.
func ReadVolume(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("error decompressing %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("error reading header of %s: %w", path, err)
	}

	// sizeof_hdr doubles as an endianness probe: a valid header reads 348
	order := byteOrderFor(raw)
	if order == nil {
		return nil, fmt.Errorf("%s is not a NIfTI-1 file (bad sizeof_hdr)", path)
	}
	var hdr nifti1Header
	if err := readHeader(raw, order, &hdr); err != nil {
		return nil, fmt.Errorf("error parsing header of %s: %w", path, err)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, fmt.Errorf("%s: unsupported dimensionality %d", path, ndim)
	}
	for i := 4; i <= ndim; i++ {
		if hdr.Dim[i] > 1 {
			return nil, fmt.Errorf("%s: 4D time-series volumes are not supported (dim[%d]=%d)", path, i, hdr.Dim[i])
		}
	}
	w, h, d := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, fmt.Errorf("%s: invalid volume extents %dx%dx%d", path, w, h, d)
	}

	// voxel data follows at vox_offset; skip any header extension
	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		skip = 4 // default single-file layout (vox_offset 352)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("error seeking voxel data of %s: %w", path, err)
	}

	flat, err := readVoxels(r, order, int(hdr.Datatype), w*h*d)
	if err != nil {
		return nil, fmt.Errorf("error reading voxel data of %s: %w", path, err)
	}

	// NIfTI stores the first axis fastest; repack into the Volume layout
	vol := models.NewVolume(w, h, d)
	i := 0
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				vol.Set(x, y, z, flat[i])
				i++
			}
		}
	}
	return vol, nil
}

func byteOrderFor(raw []byte) binary.ByteOrder {
	if binary.LittleEndian.Uint32(raw[:4]) == headerSize {
		return binary.LittleEndian
	}
	if binary.BigEndian.Uint32(raw[:4]) == headerSize {
		return binary.BigEndian
	}
	return nil
}

func readHeader(raw []byte, order binary.ByteOrder, hdr *nifti1Header) error {
	return binary.Read(bytes.NewReader(raw), order, hdr)
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype, n int) ([]float32, error) {
	out := make([]float32, n)
	switch datatype {
	case dtUint8:
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtInt16:
		buf := make([]int16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtUint16:
		buf := make([]uint16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtInt32:
		buf := make([]int32, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case dtFloat32:
		if err := binary.Read(r, order, out); err != nil {
			return nil, err
		}
	case dtFloat64:
		buf := make([]float64, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported voxel datatype %d", datatype)
	}
	return out, nil
}

// Load reads a volume and applies its .deeprad sidecar normalization.
// A missing sidecar is not an error: the raw data is returned and a
// warning is logged so the user can run niinormalize first.
func Load(path string, logger *log.Logger) (*models.Volume, error) {
	vol, err := ReadVolume(path)
	if err != nil {
		return nil, err
	}

	rec, err := ReadSidecar(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if logger != nil {
			logger.Printf("WARNING: no normalization info found for %s, assuming data is pre-normalized. Otherwise run niinormalize", path)
		}
		return vol, nil
	}
	if err := rec.Apply(vol.Data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vol, nil
}

// SidecarPath returns the .deeprad sidecar path for a volume file
func SidecarPath(volPath string) string {
	return volPath + ".deeprad"
}

// ReadSidecar reads the normalization record beside a volume file.
// It returns (nil, nil) when no sidecar exists.
func ReadSidecar(volPath string) (*models.NormalizationRecord, error) {
	data, err := os.ReadFile(SidecarPath(volPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading sidecar for %s: %w", volPath, err)
	}
	rec := &models.NormalizationRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("error parsing sidecar for %s: %w", volPath, err)
	}
	return rec, nil
}

// WriteSidecar writes the normalization record beside a volume file
func WriteSidecar(volPath string, rec *models.NormalizationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error marshaling sidecar: %w", err)
	}
	if err := os.WriteFile(SidecarPath(volPath), data, 0644); err != nil {
		return fmt.Errorf("error writing sidecar for %s: %w", volPath, err)
	}
	return nil
}

// RemoveSidecar deletes the sidecar beside a volume file if one exists
func RemoveSidecar(volPath string) error {
	err := os.Remove(SidecarPath(volPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteVolume writes a volume as a minimal single-file NIfTI-1 image with
// float32 voxels. A .gz extension enables gzip compression.
func WriteVolume(path string, vol *models.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	hdr := nifti1Header{
		SizeofHdr: headerSize,
		Datatype:  dtFloat32,
		Bitpix:    32,
		VoxOffset: headerSize + 4,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.W)
	hdr.Dim[2] = int16(vol.H)
	hdr.Dim[3] = int16(vol.D)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	for i := 0; i < 8; i++ {
		hdr.Pixdim[i] = 1
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("error writing header of %s: %w", path, err)
	}
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil { // no extensions
		return err
	}

	flat := make([]float32, len(vol.Data))
	i := 0
	for z := 0; z < vol.D; z++ {
		for y := 0; y < vol.H; y++ {
			for x := 0; x < vol.W; x++ {
				flat[i] = vol.At(x, y, z)
				i++
			}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, flat); err != nil {
		return fmt.Errorf("error writing voxel data of %s: %w", path, err)
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}

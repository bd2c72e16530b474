// Package normalize computes .deeprad sidecar normalization records for
// folders of NIfTI volumes. Running it is the usual prerequisite before a
// conversion run, so that every volume enters the sampling pipeline on a
// comparable intensity scale. The volumes themselves are never modified.
package normalize

import (
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/stat"

	"nii2img/internal/models"
	"nii2img/pkg/nifti"
)

// Mode selects the normalization strategy
type Mode int

const (
	// VolumeNorm scales each volume to [0,1] from its own value range
	VolumeNorm Mode = iota

	// GlobalNorm scales every volume by the range pooled across all
	// volumes (two passes through the data)
	GlobalNorm

	// VolumeZScore standardizes each volume by its own mean and stddev
	VolumeZScore

	// GlobalZScore standardizes every volume by statistics pooled across
	// all volumes (two passes through the data)
	GlobalZScore

	// CustomNorm applies a user-specified (data-shift)/scale
	CustomNorm

	// NoNorm removes any existing sidecar records
	NoNorm
)

// Params configures a normalization run
type Params struct {
	// Folders lists the input folders to process together
	Folders []string

	// Mode is the normalization strategy
	Mode Mode

	// Shift and Scale are the CustomNorm factors
	Shift float64
	Scale float64

	// CropBelow and CropAbove clip the value range at the given
	// percentiles for the range-based modes; defaults 0 and 100 reduce
	// to min/max. Z-score modes ignore them.
	CropBelow float64
	CropAbove float64

	// Logger receives progress lines; log.Default when nil
	Logger *log.Logger
}

// Run computes and writes a sidecar record beside every volume found in
// the configured folders
func Run(params *Params) error {
	logger := params.Logger
	if logger == nil {
		logger = log.Default()
	}

	var files []string
	for _, folder := range params.Folders {
		list, err := nifti.Glob(folder)
		if err != nil {
			return err
		}
		files = append(files, list...)
	}
	logger.Printf("%d files were found in %d folder(s)", len(files), len(params.Folders))
	if len(files) == 0 {
		return fmt.Errorf("no volumes found in input folders")
	}

	var global *models.NormalizationRecord
	if params.Mode == GlobalNorm || params.Mode == GlobalZScore {
		rec, err := globalRecord(params, files, logger)
		if err != nil {
			return err
		}
		global = rec
	}

	for i, path := range files {
		var rec *models.NormalizationRecord
		switch params.Mode {
		case NoNorm:
			if err := nifti.RemoveSidecar(path); err != nil {
				return err
			}
			logger.Printf("Removed normalization %d/%d: %s", i+1, len(files), path)
			continue
		case GlobalNorm, GlobalZScore:
			rec = global
		case CustomNorm:
			rec = &models.NormalizationRecord{NormType: models.NormCustom, Norm1: params.Shift, Norm2: params.Scale}
		case VolumeNorm, VolumeZScore:
			vol, err := nifti.ReadVolume(path)
			if err != nil {
				return err
			}
			if params.Mode == VolumeNorm {
				lo, hi := croppedRange(vol.Data, params.CropBelow, params.CropAbove)
				rec = &models.NormalizationRecord{NormType: models.NormVolume, Norm1: lo, Norm2: hi}
			} else {
				mean, std := meanStd(vol.Data)
				rec = &models.NormalizationRecord{NormType: models.NormVolumeZScore, Norm1: mean, Norm2: std}
			}
		default:
			return fmt.Errorf("invalid normalization mode %d", params.Mode)
		}

		if err := nifti.WriteSidecar(path, rec); err != nil {
			return err
		}
		logger.Printf("Processing %d/%d: %s", i+1, len(files), path)
	}

	logger.Printf("Normalization completed!")
	return nil
}

// globalRecord makes the first pass over all volumes and pools per-volume
// statistics into one shared record
func globalRecord(params *Params, files []string, logger *log.Logger) (*models.NormalizationRecord, error) {
	norm1 := make([]float64, len(files))
	norm2 := make([]float64, len(files))
	for i, path := range files {
		vol, err := nifti.ReadVolume(path)
		if err != nil {
			return nil, err
		}
		if params.Mode == GlobalNorm {
			norm1[i], norm2[i] = croppedRange(vol.Data, params.CropBelow, params.CropAbove)
		} else {
			norm1[i], norm2[i] = meanStd(vol.Data)
		}
	}

	if params.Mode == GlobalNorm {
		lo, hi := norm1[0], norm2[0]
		for i := 1; i < len(files); i++ {
			if norm1[i] < lo {
				lo = norm1[i]
			}
			if norm2[i] > hi {
				hi = norm2[i]
			}
		}
		logger.Printf(" Global min = %g (@ %g%%-ile)", lo, params.CropBelow)
		logger.Printf(" Global max = %g (@ %g%%-ile)", hi, params.CropAbove)
		return &models.NormalizationRecord{NormType: models.NormGlobal, Norm1: lo, Norm2: hi}, nil
	}

	mean := stat.Mean(norm1, nil)
	std := stat.Mean(norm2, nil)
	logger.Printf(" Global mean = %g", mean)
	logger.Printf(" Global std = %g", std)
	return &models.NormalizationRecord{NormType: models.NormGlobalZScore, Norm1: mean, Norm2: std}, nil
}

// croppedRange returns the value range of the data clipped to the given
// percentiles
func croppedRange(data []float32, cropBelow, cropAbove float64) (lo, hi float64) {
	sorted := make([]float64, len(data))
	for i, v := range data {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)
	lo = stat.Quantile(cropBelow/100, stat.LinInterp, sorted, nil)
	hi = stat.Quantile(cropAbove/100, stat.LinInterp, sorted, nil)
	return lo, hi
}

// meanStd returns the mean and standard deviation of the data
func meanStd(data []float32) (mean, std float64) {
	f := make([]float64, len(data))
	for i, v := range data {
		f[i] = float64(v)
	}
	mean, std = stat.MeanStdDev(f, nil)
	return mean, std
}

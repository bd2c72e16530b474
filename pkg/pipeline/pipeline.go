// Package pipeline converts matched folders of NIfTI volumes into
// augmented 2D training sample pairs, partitioned into train/val/test
// subsets. It is the orchestration layer over the slab sampler, the
// transform composer/resampler and the dataset partitioner.
package pipeline

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"

	"nii2img/internal/models"
	"nii2img/pkg/nifti"
	"nii2img/pkg/tiffio"
	"nii2img/pkg/transform"
)

// Params holds the full conversion configuration. It is validated once at
// the start of Run and treated as immutable afterwards.
type Params struct {
	// XFolders and YFolders list the input and target channel folders.
	// Folder i of each list contributes channel i of the respective
	// stack; all folders must hold the same number of volumes.
	XFolders []string
	YFolders []string

	// OutFolder is the root of the emitted dataset
	OutFolder string

	// Axes lists the anatomical axes to sample along
	Axes []models.Axis

	// ImSize, when non-nil, forces every sample plane to [W, H].
	// Otherwise the first loaded X stack fixes the output shape.
	ImSize []int

	// XSlices and YSlices are the slab thicknesses (odd, at most 5)
	XSlices int
	YSlices int

	// Shuffle randomizes subject order; combined with Seed it yields a
	// different but reproducible sampling
	Shuffle bool

	// TestFraction and ValFraction are integer percentages of subjects
	// routed to the test and validation partitions
	TestFraction int
	ValFraction  int

	// AugFactor is how many samples to draw per slice of each volume
	AugFactor int

	// AugMode selects the boundary extension used during resampling
	AugMode transform.BoundaryMode

	// Seed initializes the single random generator driving the run
	Seed int64

	// AddNoise is the sigma of Gaussian noise shared between the X and Y
	// planes of each sample; zero disables noise
	AddNoise float64

	// Flip flags and augmentation magnitudes, see transform.Options
	HFlips       bool
	VFlips       bool
	Rotations    float64
	Shears       float64
	Scalings     float64
	Translations float64

	// Protect enables overwrite protection: existing output files are
	// skipped past instead of rejected or clobbered
	Protect bool

	// Previews additionally writes clamped Gray16 renditions of every
	// sample for visual checks
	Previews bool

	// Logger receives progress and warning lines; log.Default when nil
	Logger *log.Logger
}

// Stats summarizes a completed run
type Stats struct {
	// Subjects is the number of matched volume sets found
	Subjects int

	// Combos is the number of subject/axis combinations that produced samples
	Combos int

	// Skipped is the number of subject/axis combinations excluded for
	// mismatched shapes or too-thin volumes
	Skipped int

	// Samples is the number of X/Y pairs written
	Samples int
}

// Pipeline drives one conversion run
type Pipeline struct {
	params *Params
	logger *log.Logger
	rng    *rand.Rand

	// outputShape is [W, H], fixed by ImSize or the first X stack
	outputShape []int

	// subjectCount numbers output files; it advances per subject/axis
	// combination so multiple axes of one subject never collide
	subjectCount int

	alloc *pathAllocator
	stats Stats
}

// New creates a pipeline for the given parameters
func New(params *Params) *Pipeline {
	logger := params.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		params: params,
		logger: logger,
	}
}

// validate checks the configuration surface once before any work
func (p *Pipeline) validate() error {
	pr := p.params
	if len(pr.XFolders) == 0 || len(pr.YFolders) == 0 {
		return fmt.Errorf("at least one X folder and one Y folder are required")
	}
	if pr.OutFolder == "" {
		return fmt.Errorf("output folder is required")
	}
	if len(pr.Axes) == 0 {
		return fmt.Errorf("at least one sampling axis is required")
	}
	for _, a := range pr.Axes {
		if a < models.AxisX || a > models.AxisZ {
			return fmt.Errorf("invalid axis %d: must be 0, 1 or 2", a)
		}
	}
	for _, k := range []int{pr.XSlices, pr.YSlices} {
		if k < 1 || k > 5 || k%2 == 0 {
			return fmt.Errorf("slab thickness must be 1, 3 or 5, got %d", k)
		}
	}
	if pr.ImSize != nil && len(pr.ImSize) != 2 {
		return fmt.Errorf("imsize must be two integers, got %d", len(pr.ImSize))
	}
	if pr.ImSize != nil && (pr.ImSize[0] < 1 || pr.ImSize[1] < 1) {
		return fmt.Errorf("imsize extents must be positive")
	}
	if pr.TestFraction < 0 || pr.TestFraction > 100 || pr.ValFraction < 0 || pr.ValFraction > 100 {
		return fmt.Errorf("split fractions must be integer percentages in [0,100]")
	}
	if pr.TestFraction+pr.ValFraction > 100 {
		return fmt.Errorf("test and validation fractions sum to %d%%, must not exceed 100", pr.TestFraction+pr.ValFraction)
	}
	if pr.AugFactor < 1 {
		return fmt.Errorf("augmentation factor must be at least 1, got %d", pr.AugFactor)
	}
	return nil
}

// Run executes the full conversion. It is strictly sequential: one
// subject in memory at a time, one sample written at a time, every random
// draw in a fixed order so a seed reproduces the run byte for byte.
func (p *Pipeline) Run() error {
	pr := p.params
	if err := p.validate(); err != nil {
		return err
	}
	p.rng = rand.New(rand.NewSource(pr.Seed))
	p.alloc = newPathAllocator(pr.Protect)

	// enumerate subjects and require a consistent count per folder
	xFiles, numFiles, err := globFolders(pr.XFolders)
	if err != nil {
		return err
	}
	yFiles, yCount, err := globFolders(pr.YFolders)
	if err != nil {
		return err
	}
	if yCount != numFiles {
		return fmt.Errorf("input folders hold %d volumes but target folders hold %d", numFiles, yCount)
	}
	if numFiles == 0 {
		return fmt.Errorf("no volumes found in input folders")
	}
	p.stats.Subjects = numFiles

	numTest := numFiles * pr.TestFraction / 100
	numVal := numFiles * pr.ValFraction / 100
	p.logger.Printf("%d inputs (X) will be matched to %d outputs (Y) across %d observations (subjects)",
		len(pr.XFolders), len(pr.YFolders), numFiles)
	p.logger.Printf("%d observations will be used for training, %d for validation, and %d for testing",
		numFiles-numVal-numTest, numVal, numTest)

	xFolder, yFolder, err := makeOutputDirs(pr.OutFolder, pr.TestFraction, pr.ValFraction, pr.Protect)
	if err != nil {
		return err
	}
	if pr.Protect {
		p.logger.Printf("CAUTION: overwrite protection is on. Existing images will not be overwritten, but performance will be degraded")
	}
	p.logger.Printf("Generating %dx samples per observation with augmentation", pr.AugFactor)

	// the permutation draw precedes all per-sample draws
	order := make([]int, numFiles)
	if pr.Shuffle {
		copy(order, p.rng.Perm(numFiles))
	} else {
		for i := range order {
			order[i] = i
		}
	}

	thinSkips := 0
	for i := 0; i < numFiles; i++ {
		for _, axis := range pr.Axes {
			currX := pickSubject(xFiles, order[i])
			currY := pickSubject(yFiles, order[i])

			xStack, err := p.loadStack(currX, axis)
			if err != nil {
				return err
			}
			yStack, err := p.loadStack(currY, axis)
			if err != nil {
				return err
			}

			// the first loaded stack fixes the output shape when no
			// explicit size is configured
			if p.outputShape == nil {
				if pr.ImSize != nil {
					p.outputShape = []int{pr.ImSize[0], pr.ImSize[1]}
				} else {
					w, h, _ := xStack.Shape()
					p.outputShape = []int{w, h}
				}
			}

			p.logger.Printf("X[%s] => Y[%s]", strings.Join(currX, " "), strings.Join(currY, " "))

			if !xStack.SameShape(yStack) {
				p.logger.Printf("WARNING: specified X and Y are not identically sized in x,y,z. They must be skipped.")
				p.stats.Skipped++
				continue
			}

			_, _, depth := xStack.Shape()
			maxSlices := pr.XSlices
			if pr.YSlices > maxSlices {
				maxSlices = pr.YSlices
			}
			if depth-maxSlices/2-1 <= maxSlices/2 {
				p.logger.Printf("WARNING: %s has only %d slices along axis %d, too few for a %d-slice window. It must be skipped.",
					currX[0], depth, axis, maxSlices)
				p.stats.Skipped++
				thinSkips++
				continue
			}

			p.subjectCount++
			numSamples := pr.AugFactor * depth
			split := Assign(i, numFiles, pr.TestFraction, pr.ValFraction)

			for j := 0; j < numSamples; j++ {
				if err := p.emitSample(xStack, yStack, split, j+1, xFolder, yFolder); err != nil {
					return err
				}
			}
			p.stats.Combos++
			p.stats.Samples += numSamples
			p.logger.Printf("%d of %d: wrote %d samples for axis %d", i+1, numFiles, numSamples, axis)
		}
	}

	if p.stats.Samples == 0 && thinSkips > 0 {
		return fmt.Errorf("every subject was thinner than the requested %d/%d-slice adjacency window; reduce Xslices/Yslices",
			pr.XSlices, pr.YSlices)
	}

	p.logger.Printf("Completed! %d samples across %d subject/axis combinations (%d skipped)",
		p.stats.Samples, p.stats.Combos, p.stats.Skipped)
	return nil
}

// emitSample draws, augments and writes one X/Y sample pair. Draw order
// per sample is fixed: depth, then the transform's elementary draws, then
// the shared noise field.
func (p *Pipeline) emitSample(xStack, yStack *models.VolumeStack, split Split, sampleIdx int, xFolder, yFolder string) error {
	pr := p.params
	_, _, depth := xStack.Shape()

	z, err := DrawDepth(p.rng, depth, pr.XSlices, pr.YSlices)
	if err != nil {
		return err
	}
	xPlanes := Chunk(xStack, z, pr.XSlices)
	yPlanes := Chunk(yStack, z, pr.YSlices)

	opts := transform.Options{
		HFlips:       pr.HFlips,
		VFlips:       pr.VFlips,
		Rotations:    pr.Rotations,
		Shears:       pr.Shears,
		Scalings:     pr.Scalings,
		Translations: pr.Translations,
		Resize:       pr.ImSize,
	}
	m := transform.Compose(p.rng, opts, xPlanes.W, xPlanes.H)

	outW, outH := p.outputShape[0], p.outputShape[1]
	xOut := transform.Resample(xPlanes, m, outW, outH, pr.AugMode)
	yOut := transform.Resample(yPlanes, m, outW, outH, pr.AugMode)

	if math.Abs(pr.AddNoise) > 1e-10 {
		field := transform.NoiseField(p.rng, pr.AddNoise, outW, outH)
		xOut.AddNoise(field)
		yOut.AddNoise(field)
	}

	xPath, yPath := p.alloc.allocate(xFolder, yFolder, split, p.subjectCount, sampleIdx)

	xPix, xW, xH := xOut.Flatten()
	if err := tiffio.Write(xPath, xPix, xW, xH); err != nil {
		return err
	}
	yPix, yW, yH := yOut.Flatten()
	if err := tiffio.Write(yPath, yPix, yW, yH); err != nil {
		return err
	}

	if pr.Previews {
		if err := tiffio.WritePreview(previewPath(xPath), xPix, xW, xH); err != nil {
			return err
		}
		if err := tiffio.WritePreview(previewPath(yPath), yPix, yW, yH); err != nil {
			return err
		}
	}
	return nil
}

// loadStack loads and normalizes every channel volume of one subject and
// reorients the stack so the sampling axis is trailing. Channels of one
// stack disagreeing in shape is a fatal input error, unlike the X/Y
// mismatch which only skips the combination.
func (p *Pipeline) loadStack(paths []string, axis models.Axis) (*models.VolumeStack, error) {
	stack := &models.VolumeStack{Chans: make([]*models.Volume, len(paths))}
	for i, path := range paths {
		vol, err := nifti.Load(path, p.logger)
		if err != nil {
			return nil, err
		}
		stack.Chans[i] = vol
		if i > 0 {
			if vol.W != stack.Chans[0].W || vol.H != stack.Chans[0].H || vol.D != stack.Chans[0].D {
				return nil, fmt.Errorf("channel volumes %s and %s differ in shape", paths[0], path)
			}
		}
	}
	return stack.Reorient(axis)
}

// GetStats returns the summary of the last completed run
func (p *Pipeline) GetStats() Stats {
	return p.stats
}

// globFolders lists every folder's volumes and checks that all folders
// agree on the subject count
func globFolders(folders []string) (files [][]string, count int, err error) {
	files = make([][]string, len(folders))
	for i, folder := range folders {
		list, err := nifti.Glob(folder)
		if err != nil {
			return nil, 0, err
		}
		files[i] = list
		if i == 0 {
			count = len(list)
		} else if len(list) != count {
			return nil, 0, fmt.Errorf("the number of files in folder %s is %d, expected %d", folder, len(list), count)
		}
	}
	return files, count, nil
}

// pickSubject selects subject idx's file from every channel folder
func pickSubject(files [][]string, idx int) []string {
	out := make([]string, len(files))
	for i, list := range files {
		out[i] = list[idx]
	}
	return out
}

// previewPath derives the Gray16 preview path for a sample file
func previewPath(samplePath string) string {
	return strings.TrimSuffix(samplePath, sampleExt) + "_preview" + sampleExt
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"skyproc/internal/config"
	"skyproc/internal/fits"
	"skyproc/internal/grid"
	"skyproc/internal/logging"
	"skyproc/internal/ops"
	"skyproc/internal/preview"
	"skyproc/internal/reproject"
	"skyproc/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log   *slog.Logger
	store *storage.Store
	cfg   *config.Config

	// injected seams, stubbed out in tests
	readFITS  func(path string) (*fits.Image, error)
	writeFITS func(path string, im *fits.Image) error
	galactic  galacticReprojector
	renderPNG func(im *fits.Image, path string, cfg config.PreviewConfig) error
}

// galacticReprojector abstracts the Montage-backed frame rotation.
type galacticReprojector interface {
	IsAvailable() bool
	EquatorialToGalactic2D(ctx context.Context, inPath, outPath string, log *slog.Logger) error
	EquatorialToGalactic3D(ctx context.Context, inPath, outPath string, log *slog.Logger) error
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config) Processor {
	m := reproject.NewMontage(cfg.Reproject.CanvasNX, cfg.Reproject.CanvasNY, cfg.Reproject.WorkDir)
	m.ProjectBin = cfg.Reproject.MProject
	m.ProjectCubeBin = cfg.Reproject.MProjectCube
	m.GetHdrBin = cfg.Reproject.MGetHdr
	logging.LogToolStatus(logger, "montage", m.IsAvailable(), "", m.ProjectBin, nil)
	return &router{
		log:       logger,
		store:     store,
		cfg:       cfg,
		readFITS:  fits.ReadFile,
		writeFITS: fits.WriteFile,
		galactic:  m,
		renderPNG: preview.WriteFile,
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobCubeAvg:
		return r.handleCubeAvg(ctx, job)
	case JobSlice:
		return r.handleSlice(ctx, job)
	case JobConvolve:
		return r.handleConvolve(ctx, job)
	case JobGradient:
		return r.handleGradient(ctx, job)
	case JobMask:
		return r.handleMask(ctx, job)
	case JobMaskInterp:
		return r.handleMaskInterp(ctx, job)
	case JobReproject:
		return r.handleReproject(ctx, job)
	case JobReprojectGal:
		return r.handleReprojectGal(ctx, job)
	case JobHealpix:
		return r.handleHealpix(ctx, job)
	case JobPreview:
		return r.handlePreview(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

// recordProduct persists the shape of a written FITS product.
func (r *router) recordProduct(jobID, path string, im *fits.Image) {
	if r.store == nil {
		return
	}
	object, _ := im.Header.String("OBJECT")
	_ = r.store.RecordProduct(storage.ProductRecord{
		Path:   path,
		JobID:  jobID,
		Object: object,
		Naxis:  imNaxis(im),
		Naxis1: im.NX,
		Naxis2: im.NY,
		Naxis3: im.NZ,
		Ctype1: headerString(im, "CTYPE1"),
		Ctype2: headerString(im, "CTYPE2"),
	})
}

func imNaxis(im *fits.Image) int {
	if im.Is3D() {
		return 3
	}
	return 2
}

func headerString(im *fits.Image, key string) string {
	s, _ := im.Header.String(key)
	return s
}

func (r *router) handleCubeAvg(ctx context.Context, job Job) Result {
	cube, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	avg, err := ops.CubeMean(cube)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, avg); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, avg)
	meta := map[string]any{
		"output":   job.Output,
		"channels": cube.NZ,
		"naxis1":   avg.NX,
		"naxis2":   avg.NY,
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handleSlice(ctx context.Context, job Job) Result {
	cube, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	base, _ := job.Options["base"].(string)
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(job.InputPath), filepath.Ext(job.InputPath))
	}
	units, _ := job.Options["units"].(string)
	if units == "" {
		units = "kms"
	}
	paths, err := ops.SliceToDir(cube, job.Output, base, units)
	meta := map[string]any{
		"dir":      job.Output,
		"channels": len(paths),
	}
	return Result{Job: job, Error: err, Meta: meta}
}

func (r *router) handleConvolve(ctx context.Context, job Job) Result {
	oldres := getFloat64Option(job.Options, "oldres")
	newres := getFloat64Option(job.Options, "newres")
	methodStr, _ := job.Options["method"].(string)
	if methodStr == "" {
		methodStr = r.cfg.Convolve.KernelMethod
	}
	method, err := ops.ParseKernelMethod(methodStr)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	im, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	smoothed, err := ops.Convolve(im, oldres, newres, method)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, smoothed); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, smoothed)
	meta := map[string]any{
		"output": job.Output,
		"oldres": oldres,
		"newres": newres,
		"method": method.String(),
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handleGradient(ctx context.Context, job Job) Result {
	im, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	gx, gy, mag, err := ops.Gradient(im)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, mag); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, mag)
	meta := map[string]any{"output": job.Output}

	if getBoolOption(job.Options, "components") {
		gxPath := withSuffix(job.Output, "_dx")
		gyPath := withSuffix(job.Output, "_dy")
		if err := r.writeFITS(gxPath, gx); err != nil {
			return Result{Job: job, Error: err, Meta: meta}
		}
		if err := r.writeFITS(gyPath, gy); err != nil {
			return Result{Job: job, Error: err, Meta: meta}
		}
		meta["output_dx"] = gxPath
		meta["output_dy"] = gyPath
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handleMask(ctx context.Context, job Job) Result {
	kind, _ := job.Options["kind"].(string)
	im, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	var clipped *fits.Image
	switch kind {
	case "snr":
		noise := []float64{getFloat64Option(job.Options, "noise")}
		if noisePath, _ := job.Options["noiseMap"].(string); noisePath != "" {
			nm, err := r.readFITS(noisePath)
			if err != nil {
				return Result{Job: job, Error: err}
			}
			noise = nm.Data
		}
		_, data, err := grid.SNRMask(im.Data, noise, getFloat64Option(job.Options, "snr"))
		if err != nil {
			return Result{Job: job, Error: err}
		}
		clipped = im.Clone()
		clipped.Data = data
	case "signal":
		_, data := grid.SignalMask(im.Data, getFloat64Option(job.Options, "threshold"))
		clipped = im.Clone()
		clipped.Data = data
	case "highlat":
		clipped, err = grid.MaskHighLatEQ(im, getFloat64Option(job.Options, "blim"))
		if err != nil {
			return Result{Job: job, Error: err}
		}
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown mask kind %q", kind)}
	}

	if err := r.writeFITS(job.Output, clipped); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, clipped)

	var masked int
	for _, v := range clipped.Data {
		if math.IsNaN(v) {
			masked++
		}
	}
	meta := map[string]any{
		"output": job.Output,
		"kind":   kind,
		"masked": masked,
		"total":  len(clipped.Data),
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

// handleMaskInterp reconstructs masked pixels from the surviving samples.
// With no mask file the image's own blanks mark the pixels to fill.
func (r *router) handleMaskInterp(ctx context.Context, job Job) Result {
	im, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	mask := im.Data
	if maskPath, _ := job.Options["mask"].(string); maskPath != "" {
		mm, err := r.readFITS(maskPath)
		if err != nil {
			return Result{Job: job, Error: err}
		}
		mask = mm.Data
	}

	filled, err := ops.MaskInterp(im, mask)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, filled); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, filled)

	var remaining int
	for _, v := range filled.Data {
		if math.IsNaN(v) {
			remaining++
		}
	}
	meta := map[string]any{
		"output":    job.Output,
		"remaining": remaining,
		"total":     len(filled.Data),
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handleReproject(ctx context.Context, job Job) Result {
	tmplPath, _ := job.Options["template"].(string)
	if tmplPath == "" {
		return Result{Job: job, Error: fmt.Errorf("reproject needs a template header")}
	}
	orderStr, _ := job.Options["order"].(string)
	if orderStr == "" {
		orderStr = "bilinear"
	}
	order, err := fits.ParseInterpOrder(orderStr)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	src, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	tmpl, err := r.readFITS(tmplPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	res, err := reproject.Reproject2D(src, tmpl, getBoolOption(job.Options, "clean"), order)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, res.Data); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, res.Data)

	var covered int
	for _, v := range res.Footprint {
		if v == 1 {
			covered++
		}
	}
	meta := map[string]any{
		"output":   job.Output,
		"order":    order.String(),
		"coverage": float64(covered) / float64(len(res.Footprint)),
	}
	if fpPath, _ := job.Options["footprint"].(string); fpPath != "" {
		if err := r.writeFITS(fpPath, reproject.FootprintImage(res)); err != nil {
			return Result{Job: job, Error: err, Meta: meta}
		}
		meta["footprint"] = fpPath
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handleReprojectGal(ctx context.Context, job Job) Result {
	if !r.galactic.IsAvailable() {
		return Result{Job: job, Error: fmt.Errorf("montage tools not found in PATH")}
	}
	in, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if in.Is3D() {
		err = r.galactic.EquatorialToGalactic3D(ctx, job.InputPath, job.Output, r.log)
	} else {
		err = r.galactic.EquatorialToGalactic2D(ctx, job.InputPath, job.Output, r.log)
	}
	meta := map[string]any{
		"output": job.Output,
		"cube":   in.Is3D(),
	}
	return Result{Job: job, Error: err, Meta: meta}
}

func (r *router) handleHealpix(ctx context.Context, job Job) Result {
	tmplPath, _ := job.Options["template"].(string)
	if tmplPath == "" {
		return Result{Job: job, Error: fmt.Errorf("healpix resampling needs a template header")}
	}
	orderingStr, _ := job.Options["ordering"].(string)
	if orderingStr == "" {
		orderingStr = "ring"
	}
	ordering, err := reproject.ParseOrdering(orderingStr)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	coord, _ := job.Options["coord"].(string)
	mapGalactic := coord == "" || coord == "G" || coord == "galactic"

	m, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	tmpl, err := r.readFITS(tmplPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	res, err := reproject.FromHEALPix(m.Data, ordering, mapGalactic, tmpl)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := r.writeFITS(job.Output, res.Data); err != nil {
		return Result{Job: job, Error: err}
	}
	r.recordProduct(job.ID, job.Output, res.Data)
	meta := map[string]any{
		"output":   job.Output,
		"ordering": ordering.String(),
		"npix":     len(m.Data),
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) handlePreview(ctx context.Context, job Job) Result {
	im, err := r.readFITS(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	out := job.Output
	if out == "" {
		out = strings.TrimSuffix(job.InputPath, filepath.Ext(job.InputPath)) + ".png"
	}
	if err := r.renderPNG(im, out, r.cfg.Preview); err != nil {
		return Result{Job: job, Error: err}
	}
	// Catalog the source file so watched directories build up a product
	// inventory as they fill.
	r.recordProduct(job.ID, job.InputPath, im)
	meta := map[string]any{
		"output": out,
		"naxis1": im.NX,
		"naxis2": im.NY,
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Helper functions to safely extract typed options from job.Options map
func getBoolOption(options map[string]any, key string) bool {
	if val, ok := options[key].(bool); ok {
		return val
	}
	return false
}

func getFloat64Option(options map[string]any, key string) float64 {
	if val, ok := options[key].(float64); ok {
		return val
	}
	return 0.0
}

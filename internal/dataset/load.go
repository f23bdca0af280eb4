package dataset

import (
	"bufio"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"image"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	// Image formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Config describes where to find a dataset.
// It is usually read from a YAML file, see LoadConfig.
type Config struct {
	// Name of the dataset, used in logs and reports.
	// Defaults to the config file name without extension.
	Name string `yaml:"name"`

	// ImagesDir and MasksDir hold the images and the masks. A mask is matched to its image by
	// the file name without extension. Relative paths are relative to the config file.
	ImagesDir string `yaml:"images_dir"`
	MasksDir  string `yaml:"masks_dir"`

	// FileList is an optional text file with the names (without extension) of the samples to use, one per line.
	// If empty, all images with a matching mask are used.
	FileList string `yaml:"file_list"`

	// ImageSize to resize images and masks to. If 0, the training configuration's image size is used.
	ImageSize int `yaml:"image_size"`
}

// LoadConfig reads a dataset configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset configuration %q", path)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse dataset configuration %q", path)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	baseDir := filepath.Dir(path)
	for _, dir := range []*string{&cfg.ImagesDir, &cfg.MasksDir, &cfg.FileList} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(baseDir, *dir)
		}
	}
	if cfg.ImagesDir == "" || cfg.MasksDir == "" {
		return nil, errors.Errorf("dataset configuration %q must define images_dir and masks_dir", path)
	}
	return cfg, nil
}

// LoadAll loads the datasets of the given configuration files, using size for the ones that don't set image_size.
func LoadAll(configPaths []string, size int) ([]*Dataset, error) {
	datasets := make([]*Dataset, 0, len(configPaths))
	for _, path := range configPaths {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if cfg.ImageSize == 0 {
			cfg.ImageSize = size
		}
		ds, err := Load(cfg)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif"}

// listImages returns a map of file name without extension to file path, for the image files in dir.
func listImages(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %q", dir)
	}
	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(ext)) {
			continue
		}
		files[strings.TrimSuffix(entry.Name(), ext)] = filepath.Join(dir, entry.Name())
	}
	return files, nil
}

func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file list %q", path)
	}
	defer func() { _ = f.Close() }()
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	return names, errors.Wrapf(scanner.Err(), "failed to read file list %q", path)
}

// Load the images and masks described by cfg, decoding them in parallel.
// cfg.ImageSize must be set, see LoadAll to use a default size.
//
// Samples are sorted by name, or follow the order of cfg.FileList if given.
func Load(cfg *Config) (*Dataset, error) {
	if cfg.ImageSize <= 0 {
		return nil, errors.Errorf("dataset %q: invalid image size %d", cfg.Name, cfg.ImageSize)
	}
	start := time.Now()
	images, err := listImages(cfg.ImagesDir)
	if err != nil {
		return nil, err
	}
	masks, err := listImages(cfg.MasksDir)
	if err != nil {
		return nil, err
	}
	var names []string
	if cfg.FileList != "" {
		names, err = readFileList(cfg.FileList)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if _, found := images[name]; !found {
				return nil, errors.Errorf("dataset %q: image %q listed in %q not found in %q",
					cfg.Name, name, cfg.FileList, cfg.ImagesDir)
			}
		}
	} else {
		for name := range images {
			names = append(names, name)
		}
		slices.Sort(names)
	}

	ds := &Dataset{Name: cfg.Name, Size: cfg.ImageSize}
	for _, name := range names {
		if _, found := masks[name]; !found {
			klog.Warningf("Dataset %q: image %q has no mask in %q, skipping", cfg.Name, name, cfg.MasksDir)
			continue
		}
		ds.Samples = append(ds.Samples, &Sample{Name: name})
	}
	if ds.Len() == 0 {
		return nil, errors.Errorf("dataset %q: no image/mask pairs found in %q and %q", cfg.Name, cfg.ImagesDir, cfg.MasksDir)
	}

	var wg errgroup.Group
	wg.SetLimit(runtime.GOMAXPROCS(0))
	for _, sample := range ds.Samples {
		wg.Go(func() error {
			var err error
			sample.Image, err = loadImage(images[sample.Name], cfg.ImageSize)
			if err != nil {
				return err
			}
			sample.Mask, err = loadMask(masks[sample.Name], cfg.ImageSize)
			return err
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, errors.WithMessagef(err, "failed to load dataset %q", cfg.Name)
	}
	klog.Infof("Loaded dataset %q: %d samples of %dx%d (%s) in %s", ds.Name, ds.Len(), ds.Size, ds.Size,
		humanize.Bytes(ds.MemoryBytes()), time.Since(start).Round(time.Millisecond))
	return ds, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", path)
	}
	if img.Bounds().Empty() {
		return nil, errors.Errorf("empty image %q", path)
	}
	return img, nil
}

// loadImage decodes and resizes (bilinear) the image into a [size, size, 3] slice with values in [0, 1].
func loadImage(path string, size int) ([]float32, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return ImageToRGB(img, size), nil
}

// ImageToRGB resizes (bilinear) img to size x size and converts it to a [size, size, 3] slice with values in [0, 1].
func ImageToRGB(img image.Image, size int) []float32 {
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)
	values := make([]float32, size*size*3)
	for ii := range size * size {
		for channel := range 3 {
			values[ii*3+channel] = float32(resized.Pix[ii*4+channel]) / 255
		}
	}
	return values
}

// loadMask decodes and resizes (nearest neighbor) the mask into a [size, size, 1] slice of 0s and 1s.
func loadMask(path string, size int) ([]float32, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return ImageToMask(img, size), nil
}

// ImageToMask resizes (nearest neighbor) img to size x size and binarizes it: pixels with gray
// level >= 0.5 are 1, the others 0.
func ImageToMask(img image.Image, size int) []float32 {
	resized := image.NewGray(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)
	values := make([]float32, size*size)
	for ii, v := range resized.Pix {
		if v >= 128 {
			values[ii] = 1
		}
	}
	return values
}

package ffmpeg

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mgpai22/clipcut/internal/config"
	"github.com/mgpai22/clipcut/internal/logging"
)

const (
	ffmpegReleaseVersion = "6.1"
	ffmpegReleaseBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"
)

// ErrNotFound means neither binary could be located and downloading is off.
var ErrNotFound = errors.New("ffmpeg/ffprobe not found")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

// Resolver finds the ffmpeg and ffprobe binaries: explicit paths first,
// then PATH, then a cached or freshly downloaded static build.
// The first successful answer is reused.
type Resolver struct {
	FFmpeg        string
	FFprobe       string
	AllowDownload bool
	CacheDir      string
	BaseURL       string
	Client        *http.Client
	Sink          logging.Sink

	mu    sync.Mutex
	paths *BinaryPaths
}

func NewResolver(cfg config.FFmpegConfig) *Resolver {
	return &Resolver{
		FFmpeg:        cfg.FFmpegPath,
		FFprobe:       cfg.FFprobePath,
		AllowDownload: cfg.Download,
		BaseURL:       ffmpegReleaseBaseURL,
		Client:        &http.Client{Timeout: 5 * time.Minute},
		Sink:          logging.Discard,
	}
}

func (r *Resolver) Resolve(ctx context.Context) (BinaryPaths, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paths != nil {
		return *r.paths, nil
	}
	paths, err := r.resolve(ctx)
	if err != nil {
		return BinaryPaths{}, err
	}
	r.paths = &paths
	return paths, nil
}

func (r *Resolver) resolve(ctx context.Context) (BinaryPaths, error) {
	ffmpegPath, ffprobePath := r.FFmpeg, r.FFprobe

	if ffmpegPath == "" {
		if found, err := exec.LookPath("ffmpeg"); err == nil {
			ffmpegPath = found
		}
	}
	if ffprobePath == "" {
		if found, err := exec.LookPath("ffprobe"); err == nil {
			ffprobePath = found
		}
	}
	if ffmpegPath != "" && ffprobePath != "" {
		return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
	}

	installDir, err := r.installDir()
	if err != nil {
		return BinaryPaths{}, err
	}
	cached := BinaryPaths{
		FFmpeg:  filepath.Join(installDir, "ffmpeg"+executableSuffix()),
		FFprobe: filepath.Join(installDir, "ffprobe"+executableSuffix()),
	}
	if binariesExist(cached) {
		return fillMissing(ffmpegPath, ffprobePath, cached), nil
	}

	if !r.AllowDownload {
		return BinaryPaths{}, fmt.Errorf(
			"%w: install ffmpeg, set CLIPCUT_FFMPEG_PATH/CLIPCUT_FFPROBE_PATH or enable ffmpeg.download",
			ErrNotFound,
		)
	}

	assetName, err := assetForPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return BinaryPaths{}, err
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return BinaryPaths{}, fmt.Errorf("create ffmpeg cache dir: %w", err)
	}

	logging.Infof(r.Sink, "downloading %s into %s", assetName, installDir)
	if err := r.downloadAndExtract(ctx, assetName, installDir); err != nil {
		return BinaryPaths{}, err
	}
	if !binariesExist(cached) {
		return BinaryPaths{}, errors.New("ffmpeg binaries not found after extraction")
	}

	if runtime.GOOS != "windows" {
		for _, p := range []string{cached.FFmpeg, cached.FFprobe} {
			if err := os.Chmod(p, 0o755); err != nil {
				return BinaryPaths{}, fmt.Errorf("chmod %s: %w", filepath.Base(p), err)
			}
		}
	}

	return fillMissing(ffmpegPath, ffprobePath, cached), nil
}

func (r *Resolver) installDir() (string, error) {
	cacheDir := r.CacheDir
	if cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil || dir == "" {
			dir = os.TempDir()
		}
		cacheDir = dir
	}
	return filepath.Join(
		cacheDir,
		"clipcut",
		"ffmpeg",
		ffmpegReleaseVersion,
		runtime.GOOS,
		runtime.GOARCH,
	), nil
}

// keeps any binary already found and takes the rest from the cache
func fillMissing(ffmpegPath, ffprobePath string, cached BinaryPaths) BinaryPaths {
	if ffmpegPath == "" {
		ffmpegPath = cached.FFmpeg
	}
	if ffprobePath == "" {
		ffprobePath = cached.FFprobe
	}
	return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}
}

func assetForPlatform(goos, goarch string) (string, error) {
	switch {
	case goos == "linux" && goarch == "amd64":
		return "ffmpeg-" + ffmpegReleaseVersion + "-linux-64.zip", nil
	case goos == "linux" && goarch == "arm64":
		return "ffmpeg-" + ffmpegReleaseVersion + "-linux-arm-64.zip", nil
	case goos == "darwin" && goarch == "amd64":
		return "ffmpeg-" + ffmpegReleaseVersion + "-macos-64.zip", nil
	case goos == "windows" && goarch == "amd64":
		return "ffmpeg-" + ffmpegReleaseVersion + "-win-64.zip", nil
	default:
		return "", fmt.Errorf("no prebuilt ffmpeg for %s/%s", goos, goarch)
	}
}

func (r *Resolver) downloadAndExtract(ctx context.Context, assetName, installDir string) error {
	url := fmt.Sprintf("%s/v%s/%s", strings.TrimSuffix(r.BaseURL, "/"), ffmpegReleaseVersion, assetName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download ffmpeg bundle: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download ffmpeg bundle: unexpected status %s", resp.Status)
	}

	return extractArchiveFromReader(assetName, resp.Body, installDir)
}

func extractArchiveFromReader(assetName string, reader io.Reader, installDir string) error {
	tmpFile, err := os.CreateTemp("", "clipcut-ffmpeg-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	archivePath := tmpFile.Name()
	defer func() { _ = os.Remove(archivePath) }()

	if _, err := io.Copy(tmpFile, reader); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	if err := extractArchive(archivePath, installDir); err != nil {
		return fmt.Errorf("extract %s: %w", assetName, err)
	}
	return nil
}

// pulls only the two binaries out of the bundle, whatever folder they sit in
func extractArchive(archivePath, installDir string) error {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open ffmpeg archive: %w", err)
	}
	defer func() { _ = zipReader.Close() }()

	found := map[string]bool{}
	for _, file := range zipReader.File {
		name := binaryName(filepath.Base(file.Name))
		if name == "" {
			continue
		}
		dest := filepath.Join(installDir, name+executableSuffix())
		if err := extractZipFile(file, dest); err != nil {
			return err
		}
		found[name] = true
	}

	if !found["ffmpeg"] || !found["ffprobe"] {
		return fmt.Errorf("ffmpeg archive missing required binaries")
	}
	return nil
}

func extractZipFile(file *zip.File, dest string) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open ffmpeg archive entry: %w", err)
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create ffmpeg output dir: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create ffmpeg binary: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("write ffmpeg binary: %w", err)
	}
	return nil
}

func binariesExist(p BinaryPaths) bool {
	return fileExists(p.FFmpeg) && fileExists(p.FFprobe)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// maps an archive entry to "ffmpeg" or "ffprobe", or "" for anything else
func binaryName(name string) string {
	switch strings.ToLower(name) {
	case "ffmpeg", "ffmpeg.exe":
		return "ffmpeg"
	case "ffprobe", "ffprobe.exe":
		return "ffprobe"
	default:
		return ""
	}
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

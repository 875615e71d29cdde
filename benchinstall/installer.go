package benchinstall

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/edgeprobe/edgedns/utils/archivehelper"
	"github.com/edgeprobe/edgedns/utils/filehelper"
	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/edgeprobe/edgedns/utils/webhelper"
	"github.com/google/go-github/v53/github"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	"golang.org/x/oauth2"
)

var ErrToolMissing = errors.New("benchmark tool is not installed")

const (
	ToolRepoOwner = "XIU2"
	ToolRepoName  = "CloudflareSpeedTest"
	ToolBaseName  = "CloudflareST"

	LatestVersion = "latest"
)

func ExecutableName(goos string) string {
	if goos == "windows" {
		return ToolBaseName + ".exe"
	}
	return ToolBaseName
}

// DefaultInstallPath is where the executable lives inside toolDir.
func DefaultInstallPath(toolDir string, goos string) string {
	return filepath.Join(toolDir, ExecutableName(goos))
}

// AssetName is the release asset holding the tool for a platform.
func AssetName(goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		return fmt.Sprintf("%s_%s_%s.tar.gz", ToolBaseName, goos, goarch), nil
	case "darwin", "windows":
		return fmt.Sprintf("%s_%s_%s.zip", ToolBaseName, goos, goarch), nil
	}
	return "", fmt.Errorf("unsupported operating system: %s", goos)
}

type Installer struct {
	logger      *zap.Logger
	httpClient  *http.Client
	github      *github.Client
	installPath string
	version     string
	autoInstall bool
	goos        string
	goarch      string
}

type InstallerOptions struct {
	Logger      *zap.Logger
	HttpClient  *http.Client
	InstallPath string

	// Version is a release tag such as v2.2.5, or "latest".
	Version     string
	AutoInstall bool

	GitHubToken   string
	GitHubBaseURL string

	GOOS   string
	GOARCH string
}

func NewInstaller(opts *InstallerOptions) (*Installer, error) {
	if opts.InstallPath == "" {
		return nil, errors.New("install path is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	version := opts.Version
	if version == "" {
		version = LatestVersion
	}
	if version != LatestVersion {
		if !strings.HasPrefix(version, "v") {
			version = "v" + version
		}
		if !semver.IsValid(version) {
			return nil, fmt.Errorf("invalid tool version: %s", opts.Version)
		}
	}

	apiClient := httpClient
	if opts.GitHubToken != "" {
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		apiClient = oauth2.NewClient(tokenCtx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: opts.GitHubToken,
		}))
	}

	gh := github.NewClient(apiClient)
	if opts.GitHubBaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(opts.GitHubBaseURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrap(err, "invalid github base url")
		}
		gh.BaseURL = baseURL
	}

	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	goarch := opts.GOARCH
	if goarch == "" {
		goarch = runtime.GOARCH
	}

	installPath, err := filepath.Abs(opts.InstallPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve install path")
	}

	return &Installer{
		logger:      logger,
		httpClient:  httpClient,
		github:      gh,
		installPath: installPath,
		version:     version,
		autoInstall: opts.AutoInstall,
		goos:        goos,
		goarch:      goarch,
	}, nil
}

func (i *Installer) InstallPath() string {
	return i.installPath
}

// Ensure returns the path of a usable executable, installing it first when
// it is missing or empty and auto-install is enabled.
func (i *Installer) Ensure(ctx context.Context) (string, error) {
	logger := logctx.From(ctx, i.logger)

	stat, err := os.Stat(i.installPath)
	if err == nil && stat.Mode().IsRegular() && stat.Size() > 0 {
		if i.goos != "windows" {
			err := os.Chmod(i.installPath, 0755)
			if err != nil {
				return "", errors.Wrap(err, "failed to mark tool as executable")
			}
		}

		logger.Debug("benchmark tool ready", zap.String("path", i.installPath))
		return i.installPath, nil
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrap(err, "failed to stat benchmark tool")
	}

	if !i.autoInstall {
		return "", errors.Wrapf(ErrToolMissing, "no usable executable at %s", i.installPath)
	}

	logger.Info("benchmark tool missing, installing", zap.String("path", i.installPath))
	return i.Install(ctx)
}

func (i *Installer) getRelease(ctx context.Context) (*github.RepositoryRelease, error) {
	if i.version == LatestVersion {
		release, _, err := i.github.Repositories.GetLatestRelease(ctx, ToolRepoOwner, ToolRepoName)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch latest release")
		}
		return release, nil
	}

	release, _, err := i.github.Repositories.GetReleaseByTag(ctx, ToolRepoOwner, ToolRepoName, i.version)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch release %s", i.version)
	}
	return release, nil
}

// Install downloads the release asset for this platform and places the
// executable at the install path, replacing any existing file.
func (i *Installer) Install(ctx context.Context) (string, error) {
	logger := logctx.From(ctx, i.logger)

	assetName, err := AssetName(i.goos, i.goarch)
	if err != nil {
		return "", err
	}

	release, err := i.getRelease(ctx)
	if err != nil {
		return "", err
	}

	var downloadURL string
	for _, asset := range release.Assets {
		if asset.GetName() == assetName {
			downloadURL = asset.GetBrowserDownloadURL()
			break
		}
	}
	if downloadURL == "" {
		return "", fmt.Errorf("release %s has no asset named %s", release.GetTagName(), assetName)
	}

	tmpDir, err := os.MkdirTemp("", "edgedns-install")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, assetName)

	logger.Info("downloading benchmark tool",
		zap.String("release", release.GetTagName()),
		zap.String("url", downloadURL))

	size, err := webhelper.DownloadFile(ctx, i.httpClient, downloadURL, archivePath)
	if err != nil {
		return "", err
	}

	logger.Debug("file downloaded, extracting...", zap.Int64("bytes", size))

	extractDir := filepath.Join(tmpDir, "extract")
	var names []string
	if strings.HasSuffix(assetName, ".tar.gz") {
		names, err = archivehelper.ExtractTarGz(archivePath, extractDir)
		if err != nil {
			return "", errors.Wrap(err, "failed to extract tar.gz archive")
		}
	} else {
		names, err = archivehelper.ExtractZip(archivePath, extractDir)
		if err != nil {
			return "", errors.Wrap(err, "failed to extract zip archive")
		}
	}

	exeName := ExecutableName(i.goos)
	var exePath string
	for _, name := range names {
		if filepath.Base(name) == exeName {
			exePath = filepath.Join(extractDir, name)
			break
		}
	}
	if exePath == "" {
		return "", fmt.Errorf("archive %s does not contain %s", assetName, exeName)
	}

	logger.Debug("extracted, moving to final location...", zap.String("path", i.installPath))

	err = filehelper.InstallFile(exePath, i.installPath, 0755)
	if err != nil {
		return "", errors.Wrap(err, "failed to install tool")
	}

	logger.Info("benchmark tool installed", zap.String("path", i.installPath))
	return i.installPath, nil
}

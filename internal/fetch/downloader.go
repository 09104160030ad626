package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/internal/monitoring"
	"github.com/happycreater/binance-historical-data/internal/vision"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// UnverifiedSuffix replaces the .zip extension while an archive is
// mid-transfer, so a crash never leaves something that looks complete.
const UnverifiedSuffix = "_UNVERIFIED.zip"

// zipMagic is the local-file-header signature every zip archive starts with
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

var checksumRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

const component = "downloader"

// RunLog is the subset of the run logger the downloader needs
type RunLog interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Downloader executes a single download job: skip-if-exists, stream to a
// temporary path, verify, atomically promote. One instance is safe for
// concurrent use; the scheduler guarantees distinct jobs target distinct
// local paths.
type Downloader struct {
	httpClient *http.Client
	baseURL    string
	log        RunLog
}

// NewDownloader creates a downloader against the public data tree
func NewDownloader(httpClient *http.Client, log RunLog) *Downloader {
	return NewDownloaderWithBaseURL(httpClient, vision.BaseURL, log)
}

// NewDownloaderWithBaseURL creates a downloader against a custom root,
// used by tests to point at a fixture server.
func NewDownloaderWithBaseURL(httpClient *http.Client, baseURL string, log RunLog) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Downloader{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log,
	}
}

// TempPath derives the in-flight marker path from a final local path
func TempPath(localPath string) string {
	return strings.TrimSuffix(localPath, ".zip") + UnverifiedSuffix
}

// Execute runs one job to a terminal outcome. It never leaves a partial
// file at the final path: the archive is either absent, parked under the
// unverified marker name, or complete and verified.
func (d *Downloader) Execute(ctx context.Context, job types.Job) types.DownloadResult {
	start := time.Now()
	result := d.execute(ctx, job)
	result.Duration = time.Since(start)
	monitoring.RecordJob(string(result.Outcome), result.BytesWritten)
	d.logResult(result)
	return result
}

func (d *Downloader) execute(ctx context.Context, job types.Job) types.DownloadResult {
	// Fast path: a file at the final name is always complete and verified
	if _, err := os.Stat(job.LocalPath); err == nil {
		return types.DownloadResult{Job: job, Outcome: types.OutcomeSkipped, Verified: true}
	}

	if err := os.MkdirAll(filepath.Dir(job.LocalPath), 0755); err != nil {
		return d.failed(job, errors.NewTransferError(component, "prepare_dir", err))
	}

	url := vision.EncodeURL(d.baseURL, job.RemotePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return d.failed(job, errors.NewTransferError(component, "build_request", err))
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return d.failed(job, errors.NewTransferError(component, "request", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.DownloadResult{Job: job, Outcome: types.OutcomeNotFound}
	}
	// The bucket answers missing keys on some paths with an XML error body
	if strings.Contains(resp.Header.Get("Content-Type"), "xml") {
		return types.DownloadResult{Job: job, Outcome: types.OutcomeNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return d.failed(job, errors.Newf(errors.ErrorCategoryTransfer, component, "request",
			"unexpected status %d for %s", resp.StatusCode, job.RemotePath))
	}

	tempPath := TempPath(job.LocalPath)
	written, digest, err := d.streamToTemp(resp.Body, tempPath)
	if err != nil {
		d.discard(tempPath)
		return d.failed(job, errors.NewTransferError(component, "stream", err))
	}

	if written == 0 {
		d.discard(tempPath)
		return d.failed(job, errors.NewVerificationError(component, "verify", "empty archive body"))
	}
	if err := verifyMagic(tempPath); err != nil {
		d.discard(tempPath)
		return d.failed(job, err)
	}
	if err := d.verifyChecksum(ctx, job.RemotePath, digest); err != nil {
		d.discard(tempPath)
		return d.failed(job, err)
	}

	// Promotion is the single moment the file becomes visible to the
	// assembler and to future skip pre-checks.
	if err := os.Rename(tempPath, job.LocalPath); err != nil {
		d.discard(tempPath)
		return d.failed(job, errors.NewTransferError(component, "promote", err))
	}

	return types.DownloadResult{
		Job:          job,
		Outcome:      types.OutcomeDownloaded,
		BytesWritten: written,
		Verified:     true,
	}
}

// streamToTemp writes the response body to the temporary path while
// computing its sha256 on the fly.
func (d *Downloader) streamToTemp(body io.Reader, tempPath string) (int64, string, error) {
	file, err := os.Create(tempPath)
	if err != nil {
		return 0, "", err
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, "", err
	}
	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}

// verifyMagic checks the archive's container signature
func verifyMagic(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.NewTransferError(component, "verify", err)
	}
	defer file.Close()

	header := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return errors.NewVerificationError(component, "verify", "archive shorter than zip header")
	}
	for i, b := range zipMagic {
		if header[i] != b {
			return errors.NewVerificationError(component, "verify", "invalid zip signature")
		}
	}
	return nil
}

// verifyChecksum compares the streamed digest against the upstream-published
// .CHECKSUM sidecar. A missing sidecar is not a failure; the magic check
// already established structural integrity.
func (d *Downloader) verifyChecksum(ctx context.Context, remotePath, digest string) error {
	url := vision.EncodeURL(d.baseURL, remotePath) + ".CHECKSUM"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		if d.log != nil {
			d.log.Warning("checksum fetch failed for %s: %v", remotePath, err)
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return nil
	}
	text := strings.TrimSpace(string(body))
	if len(text) < 64 {
		return nil
	}
	expected := text[:64]
	if !checksumRegex.MatchString(expected) {
		return nil
	}
	if expected != digest {
		return errors.Newf(errors.ErrorCategoryVerification, component, "verify",
			"checksum mismatch: expected %s, got %s", expected, digest)
	}
	return nil
}

func (d *Downloader) failed(job types.Job, err error) types.DownloadResult {
	return types.DownloadResult{Job: job, Outcome: types.OutcomeFailed, Err: err}
}

func (d *Downloader) discard(tempPath string) {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) && d.log != nil {
		d.log.Warning("failed to remove temporary file %s: %v", tempPath, err)
	}
}

func (d *Downloader) logResult(result types.DownloadResult) {
	if d.log == nil {
		return
	}
	name := filepath.Base(result.Job.LocalPath)
	switch result.Outcome {
	case types.OutcomeDownloaded:
		d.log.Info("downloaded: %s (%d bytes)", name, result.BytesWritten)
	case types.OutcomeSkipped:
		d.log.Info("skipped (exists): %s", name)
	case types.OutcomeNotFound:
		d.log.Info("no data: %s", name)
	case types.OutcomeFailed:
		d.log.Error("failed: %s: %v", name, result.Err)
	}
}

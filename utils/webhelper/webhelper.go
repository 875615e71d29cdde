package webhelper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// DownloadFile streams url into destPath and returns the number of bytes
// written.  A partially written file is removed on failure.
func DownloadFile(ctx context.Context, client *http.Client, url string, destPath string) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create download request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "failed to download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("server returned non-200 status code: %d while downloading from url", resp.StatusCode)
	}

	outFile, err := os.Create(destPath)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create download file")
	}

	written, err := io.Copy(outFile, resp.Body)
	closeErr := outFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(destPath)
		return 0, errors.Wrap(err, "error occured while downloading file")
	}

	return written, nil
}

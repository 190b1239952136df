// Package geo's Updater downloads a refreshed country database on an
// interval and hot-swaps it into the running Locator, grounded on
// original_source/src/geo/updater.rs: GET a gzip tarball, extract the
// single entry matching the configured database filename, and request a
// refresh, following the Rust original directly (net/http +
// archive/tar + compress/gzip replacing reqwest/tar/flate2).
package geo

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"authdns/internal/logging"
)

// Updater periodically re-downloads the geo database archive and applies
// it to a Locator.
type Updater struct {
	locator      *Locator
	url          string
	databasePath string
	log          *logging.Logger
	client       *http.Client
}

// NewUpdater builds an Updater that fetches archiveURL and extracts the
// file matching the locator's configured database path's base name.
func NewUpdater(locator *Locator, archiveURL string, log *logging.Logger) *Updater {
	return &Updater{
		locator:      locator,
		url:          archiveURL,
		databasePath: locator.databasePath,
		log:          log,
		client:       &http.Client{Timeout: 2 * time.Minute},
	}
}

// Run performs a single update cycle: download, extract, hot-swap. It is
// driven by supervise.Loop on the configured interval; there is no
// pause between the download and the swap.
func (u *Updater) Run(ctx context.Context) {
	u.log.Infof("running geo update operation against %s", u.url)

	if err := u.updateDatabase(ctx); err != nil {
		u.log.Errorf("failed running geo update operation: %v", err)
		return
	}
	u.log.Infof("ran geo update operation")

	if err := u.locator.RequestRefresh(); err != nil {
		u.log.Errorf("failure to refresh geo reader: %v", err)
		return
	}
	u.log.Infof("refreshed geo reader")
}

func (u *Updater) updateDatabase(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return fmt.Errorf("geo updater: build request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("geo updater: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo updater: download: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "authdns-geo-*.tar.gz")
	if err != nil {
		return fmt.Errorf("geo updater: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("geo updater: write download: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("geo updater: rewind download: %w", err)
	}

	gz, err := gzip.NewReader(tmp)
	if err != nil {
		return fmt.Errorf("geo updater: open gzip stream: %w", err)
	}
	defer gz.Close()

	if !u.extractArchive(tar.NewReader(gz)) {
		return fmt.Errorf("geo updater: no matching database file found in archive")
	}
	return nil
}

// extractArchive walks the tar entries looking for one whose path ends
// with the configured database file name, writing it to databasePath.
func (u *Updater) extractArchive(tr *tar.Reader) bool {
	wantSuffix := filepath.Base(u.databasePath)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			u.log.Errorf("failed to list entries in geo database archive: %v", err)
			return false
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, wantSuffix) {
			continue
		}

		out, err := os.Create(u.databasePath)
		if err != nil {
			u.log.Errorf("failed to open destination for geo database: %v", err)
			return false
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			u.log.Errorf("failed to unpack geo database archive file: %v", err)
			return false
		}
		out.Close()

		u.log.Infof("unpacked geo database archive to file: %s", u.databasePath)
		return true
	}
}

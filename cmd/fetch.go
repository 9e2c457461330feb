package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/ingest"
)

var (
	fetchFrom    string
	fetchDataDir string
	fetchFiles   []string
)

// bundleFiles is the default reference data drop contents.
var bundleFiles = []string{
	"ground_truth.json",
	"database.json",
	"ocr_results.json",
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the reference data bundle from a remote drop",
	Long: `Downloads the reference data files from an HTTP or FTP drop into the
data directory. HTTP drops are fetched conditionally: files whose ETag
has not changed since the last fetch are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if fetchFrom == "" {
			return eris.New("fetch: --from is required")
		}
		if err := os.MkdirAll(fetchDataDir, 0o755); err != nil {
			return eris.Wrap(err, "fetch: create data dir")
		}

		files := fetchFiles
		if len(files) == 0 {
			files = bundleFiles
		}

		fetcher, err := ingest.ForURL(fetchFrom)
		if err != nil {
			return err
		}

		fetched, skipped := 0, 0
		etags := loadETags(fetchDataDir)
		for _, name := range files {
			src, err := joinURL(fetchFrom, name)
			if err != nil {
				return err
			}
			dst := filepath.Join(fetchDataDir, name)

			ok, err := fetchOne(ctx, fetcher, src, dst, etags)
			if err != nil {
				return err
			}
			if ok {
				fetched++
			} else {
				skipped++
			}
		}
		saveETags(fetchDataDir, etags)

		fmt.Fprintf(os.Stderr, "Fetched %d files, %d unchanged.\n", fetched, skipped)
		return nil
	},
}

// fetchOne downloads src to dst. Returns false when the file was
// skipped because its ETag is unchanged.
func fetchOne(ctx context.Context, fetcher ingest.Fetcher, src, dst string, etags map[string]string) (bool, error) {
	hf, conditional := fetcher.(*ingest.HTTPFetcher)
	if !conditional {
		_, err := fetcher.DownloadToFile(ctx, src, dst)
		return true, err
	}

	body, newETag, changed, err := hf.DownloadIfChanged(ctx, src, etags[src])
	if err != nil {
		return false, err
	}
	if !changed {
		zap.L().Debug("fetch: unchanged", zap.String("url", src))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(dst)
	if err != nil {
		return false, eris.Wrapf(err, "fetch: create %s", dst)
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, body); err != nil {
		return false, eris.Wrapf(err, "fetch: write %s", dst)
	}
	if newETag != "" {
		etags[src] = newETag
	}
	return true, nil
}

func joinURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %s", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + name
	return u.String(), nil
}

const etagsFile = ".etags.json"

func loadETags(dir string) map[string]string {
	etags := map[string]string{}
	data, err := os.ReadFile(filepath.Join(dir, etagsFile))
	if err != nil {
		return etags
	}
	if err := json.Unmarshal(data, &etags); err != nil {
		zap.L().Warn("fetch: corrupt etag cache, refetching all", zap.Error(err))
		return map[string]string{}
	}
	return etags
}

func saveETags(dir string, etags map[string]string) {
	data, err := json.Marshal(etags)
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, etagsFile), data, 0o644); err != nil {
		zap.L().Warn("fetch: save etag cache", zap.Error(err))
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "base URL of the drop (http, https, or ftp)")
	fetchCmd.Flags().StringVar(&fetchDataDir, "data-dir", "data", "directory to write the bundle into")
	fetchCmd.Flags().StringSliceVar(&fetchFiles, "files", nil, "override the file list to download")
	rootCmd.AddCommand(fetchCmd)
}

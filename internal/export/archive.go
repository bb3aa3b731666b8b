// Package export packages the resolved assets of a run into a single ZIP.
// It shares the pipeline's philosophy: one clip failing to download never
// aborts the rest of the batch.
package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/ricardomdn/broll/internal/types"
)

// ErrNoAssets is returned when not a single asset could be fetched; no
// archive is produced in that case.
var ErrNoAssets = errors.New("no assets could be downloaded")

type Exporter struct {
	client *http.Client
	logf   func(format string, args ...any)
}

func New(client *http.Client, logf func(string, ...any)) *Exporter {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Exporter{client: client, logf: logf}
}

type item struct {
	name string
	data []byte
}

// Export fetches every resolved segment's asset in parallel and writes one
// ZIP archive to w. Per-item failures are logged and omitted. onProgress,
// when non-nil, receives a running done/total count as fetches settle. The
// returned count is the number of clips that made it into the archive.
func (e *Exporter) Export(ctx context.Context, segments []types.ScriptSegment, w io.Writer, onProgress func(done, total int)) (int, error) {
	resolved := make([]types.ScriptSegment, 0, len(segments))
	for _, s := range segments {
		if s.Resolved() {
			resolved = append(resolved, s)
		}
	}
	if len(resolved) == 0 {
		return 0, ErrNoAssets
	}

	total := len(resolved)
	items := make([]*item, total)

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for i, seg := range resolved {
		wg.Add(1)
		go func(idx int, seg types.ScriptSegment) {
			defer wg.Done()
			data, err := e.fetch(ctx, seg.VideoURL)
			n := int(done.Add(1))
			if onProgress != nil {
				onProgress(n, total)
			}
			if err != nil {
				e.logf("skipping clip %d: %v", idx+1, err)
				return
			}
			items[idx] = &item{name: clipFileName(idx+1, seg.SearchTerm), data: data}
		}(i, seg)
	}
	wg.Wait()

	count := 0
	zw := zip.NewWriter(w)
	for _, it := range items {
		if it == nil {
			continue
		}
		f, err := zw.Create(it.name)
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("create archive entry %s: %w", it.name, err)
		}
		if _, err := f.Write(it.data); err != nil {
			zw.Close()
			return 0, fmt.Errorf("write archive entry %s: %w", it.name, err)
		}
		count++
	}
	if count == 0 {
		zw.Close()
		return 0, ErrNoAssets
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}
	return count, nil
}

func (e *Exporter) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// clipFileName names an entry by its 1-based position plus a slug of the
// term that resolved it, e.g. "scene_03_orange_cat.mp4".
func clipFileName(position int, term string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(term) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		slug = "clip"
	}
	return fmt.Sprintf("scene_%02d_%s.mp4", position, slug)
}

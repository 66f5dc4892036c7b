package store

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"coolcar/internal/domain"
)

// Namespaces lists every namespace the assistant writes.
var Namespaces = []string{
	domain.NamespaceConversations,
	domain.NamespaceWebCache,
	domain.NamespaceBookings,
	domain.NamespaceReviews,
}

const maxArchiveEntry = 64 << 20

// Backup writes every stored namespace to w as a .tar.gz with one
// <namespace>.json entry each. Namespaces never written are skipped. It
// returns the namespaces archived.
func Backup(ctx context.Context, s domain.BlobStore, w io.Writer) ([]string, error) {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	var saved []string
	for _, ns := range Namespaces {
		data, err := s.Get(ctx, ns)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("backup %s: %w", ns, err)
		}
		hdr := &tar.Header{
			Name:    ns + ".json",
			Mode:    0o600,
			Size:    int64(len(data)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return saved, fmt.Errorf("backup %s: %w", ns, err)
		}
		if _, err := tw.Write(data); err != nil {
			return saved, fmt.Errorf("backup %s: %w", ns, err)
		}
		saved = append(saved, ns)
	}

	if err := tw.Close(); err != nil {
		return saved, err
	}
	return saved, gz.Close()
}

// Restore puts every known namespace found in a Backup archive back into s.
// Unknown entries are ignored.
func Restore(ctx context.Context, s domain.BlobStore, r io.Reader) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var restored []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, err
		}
		ns := strings.TrimSuffix(path.Base(hdr.Name), ".json")
		if !slices.Contains(Namespaces, ns) {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxArchiveEntry))
		if err != nil {
			return restored, fmt.Errorf("restore %s: %w", ns, err)
		}
		if err := s.Put(ctx, ns, data); err != nil {
			return restored, fmt.Errorf("restore %s: %w", ns, err)
		}
		restored = append(restored, ns)
	}
	return restored, nil
}

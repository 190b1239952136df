package geo

import (
	"archive/tar"
	"bytes"
	"os"
	"testing"

	"authdns/internal/logging"
)

func buildTar(t *testing.T, files map[string]string) *tar.Reader {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, contents := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(contents)), Mode: 0o644, Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	return tar.NewReader(&buf)
}

func TestExtractArchiveFindsMatchingFile(t *testing.T) {
	dest := t.TempDir() + "/GeoLite2-Country.mmdb"
	u := &Updater{databasePath: dest, log: logging.New("test", logging.LevelError)}

	tr := buildTar(t, map[string]string{
		"GeoLite2-Country_20240101/README.txt":         "ignore me",
		"GeoLite2-Country_20240101/GeoLite2-Country.mmdb": "fake-mmdb-bytes",
	})

	if !u.extractArchive(tr) {
		t.Fatal("expected extraction to succeed")
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fake-mmdb-bytes" {
		t.Errorf("got %q", data)
	}
}

func TestExtractArchiveNoMatch(t *testing.T) {
	dest := t.TempDir() + "/GeoLite2-Country.mmdb"
	u := &Updater{databasePath: dest, log: logging.New("test", logging.LevelError)}

	tr := buildTar(t, map[string]string{"README.txt": "nothing relevant"})

	if u.extractArchive(tr) {
		t.Fatal("expected extraction to fail when no file matches")
	}
}

// Package archive empaqueta el directorio de una ejecución en un .tar.gz cuyo
// contenido cuelga del nombre del propio directorio.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "mirror-batch/internal/platform/errors"
)

// Stats resume lo que se escribió en el archivo.
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
	// Size es el tamaño comprimido del archivo final.
	Size int64
	// Path es la ruta final; difiere de destPath si ya existía un archivo.
	Path string
}

// maxSuffix acota la búsqueda de un nombre libre.
const maxSuffix = 100

// Create escribe srcDir completo en destPath. Las entradas quedan bajo
// filepath.Base(srcDir), así que extraerlo reproduce la carpeta original. El
// archivo se escribe en un temporal junto a destPath y se renombra al terminar.
// Si destPath ya existe no se pisa: se usa {nombre}_1.tar.gz, _2, etc.
func Create(ctx context.Context, srcDir, destPath string) (Stats, error) {
	stats, err := create(ctx, srcDir, destPath)
	if err != nil {
		return stats, apperrors.NewArchiveError(destPath, err)
	}
	return stats, nil
}

func create(ctx context.Context, srcDir, destPath string) (Stats, error) {
	var stats Stats

	srcDir = filepath.Clean(srcDir)
	info, err := os.Stat(srcDir)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s no es un directorio", srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return stats, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)

	root := filepath.Base(srcDir)
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == tmpPath {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = filepath.Join(root, rel)
		}
		return addEntry(tw, path, filepath.ToSlash(name), d, &stats)
	})
	if walkErr != nil {
		return stats, walkErr
	}

	if err := tw.Close(); err != nil {
		return stats, err
	}
	if err := gz.Close(); err != nil {
		return stats, err
	}
	if err := tmp.Sync(); err != nil {
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	final, err := freePath(destPath)
	if err != nil {
		return stats, err
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return stats, err
	}
	committed = true
	stats.Path = final

	if fi, err := os.Stat(final); err == nil {
		stats.Size = fi.Size()
	}
	return stats, nil
}

// freePath devuelve destPath o, si ya existe, la primera variante con sufijo
// numérico que no exista.
func freePath(destPath string) (string, error) {
	dir, name := filepath.Split(destPath)
	ext := ".tar.gz"
	if !strings.HasSuffix(name, ext) {
		ext = filepath.Ext(name)
	}
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i <= maxSuffix; i++ {
		candidate := destPath
		if i > 0 {
			candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		}
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: sin nombre libre tras %d intentos", destPath, maxSuffix)
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry, stats *Stats) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	switch mode := info.Mode(); {
	case mode.IsDir():
		name += "/"
	case mode&fs.ModeSymlink != 0:
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	case !mode.IsRegular():
		// sockets, fifos y dispositivos no forman parte de un mirror
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Uname, hdr.Gname = "", ""
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	switch {
	case info.IsDir():
		stats.Dirs++
		return nil
	case link != "":
		stats.Symlinks++
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(tw, f)
	if err != nil {
		return err
	}
	stats.Files++
	stats.Bytes += n
	return nil
}

// ErrUnsafePath indica una entrada que escaparía del directorio de destino.
var ErrUnsafePath = errors.New("ruta insegura en el archivo")

// Extract descomprime archivePath dentro de destDir.
func Extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, fs.FileMode(hdr.Mode)&fs.ModePerm|0o700); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(tr, target, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil {
				return err
			}
		}
	}
}

func writeFile(r io.Reader, target string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

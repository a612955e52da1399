package analysis

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// resolveProjectResource resolves a project-relative path to its bytes
// for an inspector's InspectionContext.ResolveResource call. A path
// containing "!/" addresses an entry inside a JAR, e.g.
// "lib/commons.jar!/META-INF/MANIFEST.MF".
func resolveProjectResource(projectRoot, path string) ([]byte, error) {
	if idx := strings.Index(path, "!/"); idx >= 0 {
		jarPath := filepath.Join(projectRoot, path[:idx])
		entryName := path[idx+2:]
		return readJAREntry(jarPath, entryName)
	}
	return os.ReadFile(filepath.Join(projectRoot, path))
}

func readJAREntry(jarPath, entryName string) ([]byte, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("analysis: opening jar %s: %w", jarPath, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == entryName {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("analysis: opening jar entry %s: %w", entryName, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("analysis: entry %s not found in %s", entryName, jarPath)
}

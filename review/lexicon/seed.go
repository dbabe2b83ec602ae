package lexicon

import (
	"embed"
	"fmt"
	"path/filepath"

	"github.com/theimaginaryfoundation/review-sentiment/review/fileutils"
)

//go:embed seed/*.csv
var seedFS embed.FS

// Seed writes the built-in starter tables into dir for every category whose table does not exist
// yet. It returns the file names it created.
func Seed(dir string) ([]string, error) {
	var created []string
	for _, c := range Categories {
		dst := filepath.Join(dir, c.FileName())
		if fileutils.FileExists(dst) {
			continue
		}
		b, err := seedFS.ReadFile("seed/" + c.FileName())
		if err != nil {
			return created, fmt.Errorf("lexicon.Seed: %s: %w", c.FileName(), err)
		}
		if err := fileutils.WriteFileAtomicSameDir(dst, b, 0o644); err != nil {
			return created, fmt.Errorf("lexicon.Seed: write %s: %w", c.FileName(), err)
		}
		created = append(created, c.FileName())
	}
	return created, nil
}

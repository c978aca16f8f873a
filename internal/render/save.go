package render

import (
	"fmt"
	"strconv"

	"github.com/ironsheep/vision-explain/internal/imaging"
)

// FigurePath returns the file a figure with index i is saved to.
// The prefix is used verbatim: "out/fig" gives "out/fig0.jpg" and "out.jpg" gives "out.jpg0.jpg".
func FigurePath(prefix string, i int) string {
	return prefix + strconv.Itoa(i) + ".jpg"
}

// SaveFigures writes every figure as JPEG to FigurePath(prefix, i) and returns the paths.
// Each figure's Index is set to its position in figs.
func SaveFigures(figs []*Figure, prefix string, quality int) ([]string, error) {
	paths := make([]string, 0, len(figs))
	for i, f := range figs {
		f.Index = i
		path := FigurePath(prefix, i)
		if err := imaging.SaveJPEG(f.Image, path, quality); err != nil {
			return paths, fmt.Errorf("failed to save figure %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

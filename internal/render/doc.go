// Package render draws saliency figures: a colorised heatmap blended over the input
// image, the explained detection's box and caption, and a colorbar.
//
// # Figure Layout
//
// A figure is the input image with the heatmap blended over it at Options.Alpha. The
// detection box is outlined in Options.BoxColor and captioned with the label and score
// on a bar of the same color, above the box or just inside it when the box touches the
// top edge. A vertical colorbar, 1 at the top, is appended on the right unless
// Options.HideColorbar is set.
//
// # Colormaps
//
// Saliency values in [0, 1] are colorised through a 256-entry lookup table built from
// the named color stops "jet" (the default), "hot" and "viridis". Stops are
// interpolated in CIE L*a*b* space with go-colorful.
//
// # Saving
//
// SaveFigures writes figure i to FigurePath(prefix, i), which is prefix + i + ".jpg".
// The prefix is used verbatim: "out/cat_" produces out/cat_0.jpg. Missing parent
// directories are created.
//
// # Usage
//
//	fig, err := render.NewFigure(img, saliency, det, "cup", render.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	paths, err := render.SaveFigures([]*render.Figure{fig}, "out/cup_", 90)
package render

package render

import (
	"bufio"
	"fmt"
	"html"
	"io"
)

// WriteSVG renders the current frame as a standalone SVG document
func (s *Surface) WriteSVG(w io.Writer) error {
	return s.Frame().WriteSVG(w)
}

// WriteSVG renders a frame as a standalone SVG document.
// The viewport transform is applied once, on the container group.
func (f *Frame) WriteSVG(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n",
		f.Width, f.Height, f.Width, f.Height)
	fmt.Fprintf(bw, `<g transform="%s">`+"\n", f.Transform)

	fmt.Fprintln(bw, `<g stroke="#999">`)
	for _, e := range f.Edges {
		fmt.Fprintf(bw, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1.5" stroke-opacity="%g"/>`+"\n",
			e.X1, e.Y1, e.X2, e.Y2, e.Opacity)
	}
	fmt.Fprintln(bw, `</g>`)

	fmt.Fprintln(bw, `<g stroke="#fff" stroke-width="1.5">`)
	for _, n := range f.Nodes {
		fill := "#69b3a2"
		if n.ID == f.Selected {
			fill = "#e07a5f"
		}
		fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="%g" fill="%s" opacity="%g"><title>%s</title></circle>`+"\n",
			n.X, n.Y, n.Radius, fill, n.Opacity, html.EscapeString(n.ID))
	}
	fmt.Fprintln(bw, `</g>`)

	fmt.Fprintf(bw, `<g font-size="%d" font-family="sans-serif">`+"\n", labelFontSize)
	for _, l := range f.Labels {
		fmt.Fprintf(bw, `<text x="%.2f" y="%.2f" opacity="%g">%s</text>`+"\n",
			l.X, l.Y, l.Opacity, html.EscapeString(l.Text))
	}
	fmt.Fprintln(bw, `</g>`)

	fmt.Fprintln(bw, `</g>`)
	fmt.Fprintln(bw, `</svg>`)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

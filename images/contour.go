package images

import "image"

// Contour is the ordered boundary of one connected region, with straight
// runs compressed to their end points.
type Contour []image.Point

// neighbours lists the 8-connected offsets clockwise (y grows downwards),
// starting east.
var neighbours = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const dirWest = 4

// FindExternalContours returns the outer boundary of every 8-connected
// region of non-zero pixels that is not enclosed by another region.
//
// Regions sitting inside a hole of a larger region are skipped, as are the
// holes themselves. Contours are returned in raster order of their
// top-left-most pixel.
//
// Arguments:
//   - src: Binary image; any non-zero pixel is foreground.
//
// Returns:
//   - []Contour: One contour per external region.
//   - error: ErrEmptyImage.
func (Native) FindExternalContours(src *image.Gray) ([]Contour, error) {
	if err := validGray(src, "find contours"); err != nil {
		return nil, err
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x, v := range row(src, y) {
			fg[y*w+x] = v != 0
		}
	}
	isFg := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && fg[p.Y*w+p.X]
	}

	outside := outerBackground(fg, w, h)
	visited := make([]bool, w*h)
	var contours []Contour

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !fg[i] || visited[i] {
				continue
			}
			markComponent(fg, visited, w, h, x, y)

			// The pixel west of the first pixel of a region is background
			// that either surrounds the region or lies in another region's hole.
			if x > 0 && !outside[i-1] {
				continue
			}
			contours = append(contours, compress(traceBoundary(isFg, image.Pt(x, y))))
		}
	}
	return contours, nil
}

// outerBackground flood-fills, with 4-connectivity, the background reachable
// from the frame border.
func outerBackground(fg []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		i := y*w + x
		if !fg[i] && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
	return outside
}

// markComponent flags every pixel 8-connected to (x, y) as visited.
func markComponent(fg, visited []bool, w, h, x, y int) {
	stack := []image.Point{{x, y}}
	visited[y*w+x] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range neighbours {
			q := p.Add(d)
			if q.X < 0 || q.Y < 0 || q.X >= w || q.Y >= h {
				continue
			}
			j := q.Y*w + q.X
			if fg[j] && !visited[j] {
				visited[j] = true
				stack = append(stack, q)
			}
		}
	}
}

// traceBoundary follows the outer border of the region containing start
// using Moore-neighbour tracing. start must be the region's first pixel in
// raster order.
func traceBoundary(isFg func(image.Point) bool, start image.Point) Contour {
	contour := Contour{start}
	p, back := start, dirWest
	var first image.Point
	moved := false

	for {
		next, dir, ok := nextBoundaryPixel(isFg, p, back)
		if !ok {
			// Isolated pixel.
			return contour
		}
		if moved && p == start && next == first {
			break
		}
		if !moved {
			first, moved = next, true
		}

		// The backtrack point is the background neighbour examined just
		// before next, expressed relative to next.
		if dir%2 == 0 {
			back = (dir + 6) % 8
		} else {
			back = (dir + 5) % 8
		}
		p = next
		contour = append(contour, p)
	}

	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}

// nextBoundaryPixel sweeps clockwise around p starting after back.
func nextBoundaryPixel(isFg func(image.Point) bool, p image.Point, back int) (image.Point, int, bool) {
	for i := 1; i <= 8; i++ {
		d := (back + i) % 8
		if q := p.Add(neighbours[d]); isFg(q) {
			return q, d, true
		}
	}
	return image.Point{}, 0, false
}

// compress drops points that continue a straight run.
func compress(c Contour) Contour {
	n := len(c)
	if n <= 2 {
		return c
	}
	out := make(Contour, 0, n)
	for i, p := range c {
		prev, next := c[(i-1+n)%n], c[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	return out
}

// ContourArea returns the polygon area enclosed by c (shoelace formula).
func (Native) ContourArea(c Contour) float64 {
	return PolygonArea(c)
}

// BoundingRect returns the smallest rectangle containing every point of c.
func (Native) BoundingRect(c Contour) image.Rectangle {
	return PointsBounds(c)
}

// PolygonArea returns the unsigned area of the closed polygon c.
func PolygonArea(c Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	sum := 0
	for i, p := range c {
		q := c[(i+1)%len(c)]
		sum += p.X*q.Y - q.X*p.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return float64(sum) / 2
}

// PointsBounds returns the inclusive bounds of c as a half-open rectangle.
func PointsBounds(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

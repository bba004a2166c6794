package layout

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tile codes used by the grid format.
const (
	TileFloor     = '0'
	TileFireplace = '1'
	TileTable     = '2'
	TileChair     = '3'
)

const (
	defaultTileWidth  = 100
	defaultTileHeight = 75
	defaultStandDY    = 40
)

// yamlLayoutFile is the top-level YAML structure for layout files.
type yamlLayoutFile struct {
	Layout yamlLayout `yaml:"layout"`
}

// yamlLayout is the YAML representation of a layout.
type yamlLayout struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Width       float64        `yaml:"width"`
	Height      float64        `yaml:"height"`
	Spawn       *yamlPoint     `yaml:"spawn"`
	StandOffset *yamlPoint     `yaml:"stand_offset"`
	Seats       []yamlSeat     `yaml:"seats"`
	Obstacles   []yamlObstacle `yaml:"obstacles"`
	Grid        *yamlGrid      `yaml:"grid"`
}

type yamlPoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type yamlSeat struct {
	ID int     `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type yamlObstacle struct {
	Kind   string  `yaml:"kind"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// yamlGrid is a tile map. Each row is a string of tile codes; coordinates are
// tile centres.
type yamlGrid struct {
	TileWidth  float64  `yaml:"tile_width"`
	TileHeight float64  `yaml:"tile_height"`
	Rows       []string `yaml:"rows"`
}

// LoadFromFile reads and validates a single layout YAML file.
//
// Precondition: path must point to a valid YAML layout file.
// Postcondition: Returns a validated Layout or a non-nil error.
func LoadFromFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a layout from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the layout schema.
// Postcondition: Returns a validated Layout or a non-nil error.
func LoadFromBytes(data []byte) (*Layout, error) {
	var file yamlLayoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing layout YAML: %w", err)
	}

	l, err := convertYAMLLayout(file.Layout)
	if err != nil {
		return nil, fmt.Errorf("converting layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("validating layout: %w", err)
	}
	return l, nil
}

// Default returns the built-in lounge: an 8x8 grid with a chair either side of
// a central table and a fireplace on the top wall.
func Default() *Layout {
	l, err := LoadFromBytes([]byte(defaultLayoutYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in layout is invalid: %v", err))
	}
	return l
}

const defaultLayoutYAML = `
layout:
  id: lounge
  name: Lounge
  grid:
    tile_width: 100
    tile_height: 75
    rows:
      - "00110000"
      - "00000000"
      - "00000000"
      - "00222000"
      - "03222300"
      - "00222000"
      - "00000000"
      - "00000000"
`

// convertYAMLLayout converts the parsed YAML structures into domain types,
// expanding the tile grid when present.
func convertYAMLLayout(yl yamlLayout) (*Layout, error) {
	l := &Layout{
		ID:     yl.ID,
		Name:   yl.Name,
		Width:  yl.Width,
		Height: yl.Height,
	}

	for _, ys := range yl.Seats {
		l.Seats = append(l.Seats, Seat{ID: SeatID(ys.ID), Position: Point{X: ys.X, Y: ys.Y}})
	}
	for _, yo := range yl.Obstacles {
		l.Obstacles = append(l.Obstacles, Obstacle{
			Kind:     ObstacleKind(yo.Kind),
			Position: Point{X: yo.X, Y: yo.Y},
			Width:    yo.Width,
			Height:   yo.Height,
		})
	}

	if yl.Grid != nil {
		if err := expandGrid(l, *yl.Grid); err != nil {
			return nil, err
		}
	}

	if yl.Spawn != nil {
		l.Spawn = Point{X: yl.Spawn.X, Y: yl.Spawn.Y}
	} else {
		l.Spawn = Point{X: l.Width / 2, Y: l.Height / 2}
	}
	if yl.StandOffset != nil {
		l.StandOffset = Point{X: yl.StandOffset.X, Y: yl.StandOffset.Y}
	} else {
		l.StandOffset = Point{Y: defaultStandDY}
	}

	sort.SliceStable(l.Seats, func(i, j int) bool { return l.Seats[i].ID < l.Seats[j].ID })
	return l, nil
}

// expandGrid appends chairs and furniture from g to l. Chairs are numbered in
// row-major order, continuing after the highest explicit seat id. Bounds
// default to the grid extent.
func expandGrid(l *Layout, g yamlGrid) error {
	tw, th := g.TileWidth, g.TileHeight
	if tw == 0 {
		tw = defaultTileWidth
	}
	if th == 0 {
		th = defaultTileHeight
	}
	if tw < 0 || th < 0 {
		return fmt.Errorf("grid tile size must be positive, got %vx%v", tw, th)
	}

	next := NoSeat
	for _, s := range l.Seats {
		if s.ID > next {
			next = s.ID
		}
	}

	cols := 0
	for r, row := range g.Rows {
		if cols == 0 {
			cols = len(row)
		} else if len(row) != cols {
			return fmt.Errorf("grid row %d has %d tiles, want %d", r, len(row), cols)
		}
		for c, code := range row {
			centre := Point{X: float64(c)*tw + tw/2, Y: float64(r)*th + th/2}
			switch code {
			case TileFloor:
			case TileChair:
				next++
				l.Seats = append(l.Seats, Seat{ID: next, Position: centre})
			case TileFireplace:
				l.Obstacles = append(l.Obstacles, Obstacle{Kind: Fireplace, Position: centre, Width: tw, Height: th})
			case TileTable:
				l.Obstacles = append(l.Obstacles, Obstacle{Kind: Table, Position: centre, Width: tw, Height: th})
			default:
				return fmt.Errorf("grid row %d col %d: unknown tile code %q", r, c, code)
			}
		}
	}

	if l.Width == 0 {
		l.Width = float64(cols) * tw
	}
	if l.Height == 0 {
		l.Height = float64(len(g.Rows)) * th
	}
	return nil
}

package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const explicitLayoutYAML = `
layout:
  id: parlour
  name: "The Parlour"
  width: 640
  height: 480
  spawn: {x: 320, y: 240}
  stand_offset: {x: 0, y: 30}
  seats:
    - id: 2
      x: 500
      y: 200
    - id: 1
      x: 100
      y: 200
  obstacles:
    - kind: sofa
      x: 300
      y: 100
      width: 200
      height: 60
`

func TestLoadFromBytes_Explicit(t *testing.T) {
	l, err := LoadFromBytes([]byte(explicitLayoutYAML))
	require.NoError(t, err)

	assert.Equal(t, "parlour", l.ID)
	assert.Equal(t, "The Parlour", l.Name)
	assert.Equal(t, Point{X: 320, Y: 240}, l.Spawn)
	assert.Equal(t, Point{Y: 30}, l.StandOffset)
	require.Len(t, l.Seats, 2)
	assert.Equal(t, SeatID(1), l.Seats[0].ID, "seats are ordered by id")
	assert.Equal(t, Point{X: 100, Y: 200}, l.Seats[0].Position)
	require.Len(t, l.Obstacles, 1)
	assert.Equal(t, ObstacleKind("sofa"), l.Obstacles[0].Kind)
}

func TestDefault_MatchesLoungeGrid(t *testing.T) {
	l := Default()

	assert.Equal(t, "lounge", l.ID)
	assert.Equal(t, 800.0, l.Width)
	assert.Equal(t, 600.0, l.Height)
	assert.Equal(t, Point{X: 400, Y: 300}, l.Spawn)
	assert.Equal(t, Point{X: 0, Y: 40}, l.StandOffset)

	require.Len(t, l.Seats, 2)
	s1, ok := l.Seat(1)
	require.True(t, ok)
	assert.Equal(t, Point{X: 150, Y: 337.5}, s1.Position)
	s2, ok := l.Seat(2)
	require.True(t, ok)
	assert.Equal(t, Point{X: 550, Y: 337.5}, s2.Position)

	var fireplaces, tables int
	for _, o := range l.Obstacles {
		switch o.Kind {
		case Fireplace:
			fireplaces++
		case Table:
			tables++
		}
	}
	assert.Equal(t, 2, fireplaces)
	assert.Equal(t, 9, tables)
}

func TestLoadFromBytes_GridContinuesExplicitSeatIDs(t *testing.T) {
	data := `
layout:
  id: mixed
  seats:
    - id: 5
      x: 10
      y: 10
  grid:
    tile_width: 50
    tile_height: 50
    rows:
      - "30"
      - "03"
`
	l, err := LoadFromBytes([]byte(data))
	require.NoError(t, err)
	require.Len(t, l.Seats, 3)
	assert.Equal(t, SeatID(6), l.Seats[1].ID)
	assert.Equal(t, Point{X: 25, Y: 25}, l.Seats[1].Position)
	assert.Equal(t, SeatID(7), l.Seats[2].ID)
	assert.Equal(t, Point{X: 75, Y: 75}, l.Seats[2].Position)
	assert.Equal(t, 100.0, l.Width)
	assert.Equal(t, Point{X: 50, Y: 50}, l.Spawn)
}

func TestLoadFromBytes_Errors(t *testing.T) {
	cases := map[string]string{
		"invalid yaml": "layout: [",
		"missing id": `
layout:
  width: 10
  height: 10
`,
		"zero bounds": `
layout:
  id: x
`,
		"duplicate seat": `
layout:
  id: x
  width: 100
  height: 100
  seats:
    - {id: 1, x: 1, y: 1}
    - {id: 1, x: 2, y: 2}
`,
		"non-positive seat id": `
layout:
  id: x
  width: 100
  height: 100
  seats:
    - {id: 0, x: 1, y: 1}
`,
		"seat outside": `
layout:
  id: x
  width: 100
  height: 100
  seats:
    - {id: 1, x: 101, y: 1}
`,
		"spawn outside": `
layout:
  id: x
  width: 100
  height: 100
  spawn: {x: -1, y: 0}
`,
		"zero stand offset": `
layout:
  id: x
  width: 100
  height: 100
  stand_offset: {x: 0, y: 0}
  seats:
    - {id: 1, x: 1, y: 1}
`,
		"ragged grid": `
layout:
  id: x
  grid:
    rows: ["000", "00"]
`,
		"unknown tile": `
layout:
  id: x
  grid:
    rows: ["0x0"]
`,
		"obstacle without size": `
layout:
  id: x
  width: 100
  height: 100
  obstacles:
    - {kind: rug, x: 1, y: 1}
`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parlour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(explicitLayoutYAML), 0o644))

	l, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "parlour", l.ID)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedLoungeMatchesDefault(t *testing.T) {
	l, err := LoadFromFile(filepath.Join("..", "..", "..", "content", "layouts", "lounge.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), l)
}

func TestSeat_Unknown(t *testing.T) {
	l := Default()
	_, ok := l.Seat(NoSeat)
	assert.False(t, ok)
	_, ok = l.Seat(99)
	assert.False(t, ok)
}

func TestProperty_GridChairsNumberedRowMajor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(1, 6).Draw(t, "rows")
		cols := rapid.IntRange(1, 6).Draw(t, "cols")
		grid := make([]string, rows)
		chairs := 0
		for r := range grid {
			row := make([]byte, cols)
			for c := range row {
				row[c] = rapid.SampledFrom([]byte("0123")).Draw(t, "tile")
				if row[c] == TileChair {
					chairs++
				}
			}
			grid[r] = string(row)
		}

		l, err := convertYAMLLayout(yamlLayout{ID: "p", Grid: &yamlGrid{Rows: grid}})
		require.NoError(t, err)
		require.Len(t, l.Seats, chairs)
		for i, s := range l.Seats {
			assert.Equal(t, SeatID(i+1), s.ID)
			assert.True(t, l.Contains(s.Position))
			if i > 0 {
				prev := l.Seats[i-1].Position
				assert.True(t, prev.Y < s.Position.Y || (prev.Y == s.Position.Y && prev.X < s.Position.X))
			}
		}
		require.NoError(t, l.Validate())
	})
}

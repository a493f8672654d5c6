package game

import "github.com/pixil98/go-colony/internal/registry"

var terrainGlyphs = map[Terrain]rune{
	TerrainEmpty: ' ',
	TerrainFloor: '.',
	TerrainWall:  '#',
	TerrainWater: '~',
}

// View draws the square of tiles within radius of center on center's level.
// Occupied tiles are drawn with glyph; tiles outside the map are blank.
// Requires at least the read lock.
func (e *Environment) View(center Point, radius int, glyph func(registry.ID) rune) []string {
	rows := make([]string, 0, 2*radius+1)
	for y := center.Y - radius; y <= center.Y+radius; y++ {
		row := make([]rune, 0, 2*radius+1)
		for x := center.X - radius; x <= center.X+radius; x++ {
			p := Point{X: x, Y: y, Z: center.Z}
			if id, ok := e.occupants[p]; ok && glyph != nil {
				row = append(row, glyph(id))
				continue
			}
			t, ok := e.Tile(p)
			if !ok {
				row = append(row, ' ')
				continue
			}
			row = append(row, terrainGlyphs[t.Terrain])
		}
		rows = append(rows, string(row))
	}
	return rows
}

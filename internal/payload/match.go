package payload

import (
	"encoding/json"
	"strings"
)

// MatchColumns is the column order emitted for every player of a match
// result. The first column is left blank for a sheet-side sequence formula.
var MatchColumns = []string{
	"#", "side", "team", "player_name", "hero",
	"kills", "deaths", "assists", "gold", "mvp_points",
	"damage_dealt", "damage_received", "time_played", "result",
}

var statFields = []string{
	"kills", "deaths", "assists", "gold", "mvp_points",
	"damage_dealt", "damage_received",
}

// matchTable converts {"result", "time_played", "players": [...]} into one
// row per player. It reports false when players is not an array.
func matchTable(v Value) (Table, bool) {
	players, ok := v.obj["players"].Items()
	if !ok {
		return nil, false
	}
	result := textField(v, "result")
	timePlayed := textField(v, "time_played")

	table := make(Table, 0, len(players))
	for _, p := range players {
		if p.kind != KindObject {
			continue
		}
		name := textField(p, "player_name")
		row := make(Row, 0, len(MatchColumns))
		row = append(row,
			StringCell(""),
			StringCell(textField(p, "side")),
			StringCell(TeamTag(name)),
			StringCell(name),
			StringCell(textField(p, "hero")),
		)
		for _, key := range statFields {
			row = append(row, statField(p, key))
		}
		row = append(row, StringCell(timePlayed), StringCell(result))
		table = append(table, row)
	}
	return table, true
}

// TeamTag returns the team prefix of a player name: everything before the
// first space, or the whole name when there is none.
func TeamTag(playerName string) string {
	team, _, _ := strings.Cut(playerName, " ")
	return team
}

func textField(v Value, key string) string {
	f, ok := v.Field(key)
	if !ok {
		return ""
	}
	return f.Text()
}

// statField defaults missing or null stats to 0. Non-numeric values pass
// through unchanged.
func statField(v Value, key string) Cell {
	f, ok := v.Field(key)
	if !ok || f.kind == KindNull {
		return NumberCell(json.Number("0"))
	}
	return cellOf(f)
}

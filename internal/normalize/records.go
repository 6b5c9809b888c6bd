package normalize

import (
	"maps"
	"strings"
)

// ScheduleGame is a provider schedule record, passed through unchanged.
type ScheduleGame = map[string]any

// PlayerStat is a provider player record, passed through unchanged.
type PlayerStat = map[string]any

// TeamRef identifies a team inside a TeamStat.
type TeamRef struct {
	Name         *string `json:"name"`
	Abbreviation *string `json:"abbreviation"`
}

// TeamStat is the canonical per-team season record.
type TeamStat struct {
	Team                     TeamRef        `json:"team"`
	OffenseYdsPerGame        *float64       `json:"offenseYdsPerGame"`
	DefenseYdsAllowedPerGame *float64       `json:"defenseYdsAllowedPerGame"`
	PointsForPerGame         *float64       `json:"pointsForPerGame"`
	PointsAgainstPerGame     *float64       `json:"pointsAgainstPerGame"`
	Raw                      map[string]any `json:"raw"`
}

// Abbreviation returns the upper-cased abbreviation or "".
func (t *TeamStat) Abbreviation() string {
	if t == nil || t.Team.Abbreviation == nil {
		return ""
	}
	return *t.Team.Abbreviation
}

var (
	// ScheduleEnvelope unwraps schedule.json payloads.
	ScheduleEnvelope = Envelope{P("schedule.games"), P("games")}
	// TeamStatsEnvelope unwraps team_stats_totals.json payloads.
	TeamStatsEnvelope = Envelope{P("teamStatsTotals"), P("teamStats")}
	// PlayerStatsEnvelope unwraps player_stats_totals.json payloads.
	PlayerStatsEnvelope = Envelope{P("playerStatsTotals"), P("players")}
)

// teamStatRules is the accessor table for TeamStat. Team-scoped rules apply to
// the object found by teamInfo; the rest apply to the record itself.
var teamStatRules = struct {
	teamInfo      Rule
	abbreviation  Rule
	name          Rule
	offense       Rule
	defense       Rule
	pointsFor     Rule
	pointsAgainst Rule
}{
	teamInfo:      NewRule("team", "team", "Team"),
	abbreviation:  NewRule("team.abbreviation", "abbreviation", "abbrev", "code", "ShortName"),
	name:          NewRule("team.name", "name", "FullName"),
	offense:       NewRule("offenseYdsPerGame", "offense.totalYardsPerGame", "offenseYardsPerGame", "yds"),
	defense:       NewRule("defenseYdsAllowedPerGame", "defenseYardsAllowedPerGame", "defense.yardsAllowedPerGame"),
	pointsFor:     NewRule("pointsForPerGame", "pointsForPerGame", "pointsFor"),
	pointsAgainst: NewRule("pointsAgainstPerGame", "pointsAgainstPerGame", "pointsAgainst"),
}

// NewTeamStat maps one provider team record to a TeamStat.
func NewTeamStat(record map[string]any) TeamStat {
	rules := teamStatRules
	info := rules.teamInfo.Object(record)

	abbr := rules.abbreviation.Text(info)
	name := rules.name.Text(info)
	if name == nil && abbr != nil {
		fallback := *abbr
		name = &fallback
	}

	var upper *string
	if abbr != nil {
		u := strings.ToUpper(*abbr)
		upper = &u
	}

	return TeamStat{
		Team:                     TeamRef{Name: name, Abbreviation: upper},
		OffenseYdsPerGame:        rules.offense.Number(record),
		DefenseYdsAllowedPerGame: rules.defense.Number(record),
		PointsForPerGame:         rules.pointsFor.Number(record),
		PointsAgainstPerGame:     rules.pointsAgainst.Number(record),
		Raw:                      record,
	}
}

// TeamStats unwraps and maps a team_stats_totals payload.
func TeamStats(payload any) []TeamStat {
	records := TeamStatsEnvelope.Unwrap(payload)
	teams := make([]TeamStat, len(records))
	for i, record := range records {
		teams[i] = NewTeamStat(record)
	}
	return teams
}

// Schedule unwraps a schedule payload.
func Schedule(payload any) []ScheduleGame {
	return ScheduleEnvelope.Unwrap(payload)
}

// PlayerStats unwraps a player_stats_totals payload.
func PlayerStats(payload any) []PlayerStat {
	return PlayerStatsEnvelope.Unwrap(payload)
}

// Clone returns a copy of t whose fields can be changed without touching t.
// Raw is copied at the top level only.
func (t *TeamStat) Clone() TeamStat {
	return TeamStat{
		Team: TeamRef{
			Name:         clonePtr(t.Team.Name),
			Abbreviation: clonePtr(t.Team.Abbreviation),
		},
		OffenseYdsPerGame:        clonePtr(t.OffenseYdsPerGame),
		DefenseYdsAllowedPerGame: clonePtr(t.DefenseYdsAllowedPerGame),
		PointsForPerGame:         clonePtr(t.PointsForPerGame),
		PointsAgainstPerGame:     clonePtr(t.PointsAgainstPerGame),
		Raw:                      maps.Clone(t.Raw),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CloneTeams copies every record of teams.
func CloneTeams(teams []TeamStat) []TeamStat {
	if teams == nil {
		return nil
	}
	out := make([]TeamStat, len(teams))
	for i := range teams {
		out[i] = teams[i].Clone()
	}
	return out
}

// CloneRecords copies the top level of every passthrough record.
func CloneRecords(records []map[string]any) []map[string]any {
	if records == nil {
		return nil
	}
	out := make([]map[string]any, len(records))
	for i, record := range records {
		out[i] = maps.Clone(record)
	}
	return out
}

// FindTeam returns the record whose abbreviation matches abbr, ignoring case.
func FindTeam(teams []TeamStat, abbr string) (*TeamStat, bool) {
	want := strings.ToUpper(strings.TrimSpace(abbr))
	if want == "" {
		return nil, false
	}
	for i := range teams {
		if teams[i].Abbreviation() == want {
			return &teams[i], true
		}
	}
	return nil, false
}

// FilterTeams keeps the records matching abbr. An empty abbr keeps everything.
func FilterTeams(teams []TeamStat, abbr string) []TeamStat {
	want := strings.ToUpper(strings.TrimSpace(abbr))
	if want == "" {
		return teams
	}
	filtered := make([]TeamStat, 0, 1)
	for _, team := range teams {
		if team.Abbreviation() == want {
			filtered = append(filtered, team)
		}
	}
	return filtered
}

// Package loader loads Lua game content into Go structs at compile time.
// The Lua VM is discarded after loading; there is no Lua at runtime.
package loader

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// rawDef holds a constructor's id and body before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// rawEntity holds an entity table before compilation.
type rawEntity struct {
	id    string
	kind  string
	table *lua.LTable
}

// rawEvent holds an event before compilation.
type rawEvent struct {
	id    string
	table *lua.LTable
	scope string
	order int
}

// rawHandler holds an event handler before compilation.
type rawHandler struct {
	eventType string
	table     *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys from 1 make an array.
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToStringMap converts a Lua table to a map[string]string.
func tableToStringMap(tbl *lua.LTable) map[string]string {
	if tbl == nil {
		return nil
	}
	m := map[string]string{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := v.(lua.LString); ok {
				m[string(ks)] = string(vs)
			}
		}
	})
	return m
}

// stringList converts a Lua array of strings.
func stringList(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var out []string
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// eachTable calls fn for every table element of a Lua array, in order.
func eachTable(tbl *lua.LTable, fn func(*lua.LTable)) {
	if tbl == nil {
		return
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			fn(t)
		}
	}
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	defs := &state.Defs{
		Rooms:        map[string]types.RoomDef{},
		Entities:     map[string]types.EntityDef{},
		Puzzles:      map[string]types.PuzzleDef{},
		Achievements: map[string]types.AchievementDef{},
	}

	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	defs.Game = compileGame(coll.game)

	for _, raw := range coll.rooms {
		room, scoped := compileRoom(raw)
		if _, dup := defs.Rooms[room.ID]; dup {
			return nil, fmt.Errorf("room %q defined twice", room.ID)
		}
		defs.Rooms[room.ID] = room
		markScoped(coll, scoped, "room:"+raw.id)
	}

	for _, raw := range coll.entities {
		entity, scoped := compileEntity(raw)
		if _, dup := defs.Entities[entity.ID]; dup {
			return nil, fmt.Errorf("entity %q defined twice", entity.ID)
		}
		defs.Entities[entity.ID] = entity
		markScoped(coll, scoped, "entity:"+raw.id)
	}

	for _, raw := range coll.events {
		ev := compileEvent(raw)
		switch {
		case ev.Scope == "global":
			defs.GlobalEvents = append(defs.GlobalEvents, ev)
		case strings.HasPrefix(ev.Scope, "room:"):
			id := strings.TrimPrefix(ev.Scope, "room:")
			r := defs.Rooms[id]
			r.Events = append(r.Events, ev)
			defs.Rooms[id] = r
		case strings.HasPrefix(ev.Scope, "entity:"):
			id := strings.TrimPrefix(ev.Scope, "entity:")
			e := defs.Entities[id]
			e.Events = append(e.Events, ev)
			defs.Entities[id] = e
		}
	}

	for _, raw := range coll.handlers {
		defs.Handlers = append(defs.Handlers, types.EventHandler{
			EventType:  raw.eventType,
			Conditions: compileConditions(getTable(raw.table, "conditions")),
			Actions:    compileActions(getTable(raw.table, "actions")),
		})
	}

	for _, raw := range coll.puzzles {
		if _, dup := defs.Puzzles[raw.id]; dup {
			return nil, fmt.Errorf("puzzle %q defined twice", raw.id)
		}
		defs.Puzzles[raw.id] = compilePuzzle(raw)
		defs.PuzzleOrder = append(defs.PuzzleOrder, raw.id)
	}

	for _, raw := range coll.achievements {
		if _, dup := defs.Achievements[raw.id]; dup {
			return nil, fmt.Errorf("achievement %q defined twice", raw.id)
		}
		defs.Achievements[raw.id] = compileAchievement(raw)
		defs.AchievementOrder = append(defs.AchievementOrder, raw.id)
	}

	for _, raw := range coll.endings {
		defs.Endings = append(defs.Endings, compileEnding(raw))
	}

	return defs, nil
}

func compileGame(tbl *lua.LTable) types.GameDef {
	g := types.GameDef{
		Title:         getString(tbl, "title"),
		Author:        getString(tbl, "author"),
		Version:       getString(tbl, "version"),
		Start:         getString(tbl, "start"),
		Intro:         getString(tbl, "intro"),
		MaxScore:      getInt(tbl, "max_score"),
		DefaultEnding: getString(tbl, "default_ending"),
		FailureEnding: getString(tbl, "failure_ending"),
		PerfectScore:  getString(tbl, "perfect_score"),
	}
	if v := tbl.RawGetString("win"); v != lua.LNil {
		if c, ok := compileCondition(v); ok {
			g.Win = &c
		}
	}
	eachTable(getTable(tbl, "failures"), func(f *lua.LTable) {
		c, ok := compileCondition(f.RawGetString("when"))
		if !ok {
			return
		}
		g.Failures = append(g.Failures, types.FailureDef{Condition: c, Message: getString(f, "message")})
	})
	g.Milestones = compileMilestones(getTable(tbl, "milestones"))
	return g
}

// compileMilestones accepts { [50] = "halfway" } or
// { { score = 50, achievement = "halfway" } }.
func compileMilestones(tbl *lua.LTable) []types.Milestone {
	if tbl == nil {
		return nil
	}
	var out []types.Milestone
	tbl.ForEach(func(k, v lua.LValue) {
		switch val := v.(type) {
		case lua.LString:
			if n, ok := k.(lua.LNumber); ok {
				out = append(out, types.Milestone{Threshold: int(n), Achievement: string(val)})
			}
		case *lua.LTable:
			out = append(out, types.Milestone{Threshold: getInt(val, "score"), Achievement: getString(val, "achievement")})
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	return out
}

// compileRoom compiles a raw room and returns the event ids scoped to it.
func compileRoom(raw rawDef) (types.RoomDef, []string) {
	tbl := raw.table
	room := types.RoomDef{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Exits:       tableToStringMap(getTable(tbl, "exits")),
		Fallbacks:   tableToStringMap(getTable(tbl, "fallbacks")),
	}

	// gates = { north = HasItem("key") } or
	// gates = { north = { when = HasItem("key"), blocked = "Locked." } }
	if gates := getTable(tbl, "gates"); gates != nil {
		room.ExitConditions = map[string]types.Condition{}
		room.ExitBlocked = map[string]string{}
		gates.ForEach(func(k, v lua.LValue) {
			dir, ok := k.(lua.LString)
			if !ok {
				return
			}
			when := v
			if t, ok := v.(*lua.LTable); ok && t.RawGetString("when") != lua.LNil {
				when = t.RawGetString("when")
				if msg := getString(t, "blocked"); msg != "" {
					room.ExitBlocked[string(dir)] = msg
				}
			}
			if c, ok := compileCondition(when); ok {
				room.ExitConditions[string(dir)] = c
			}
		})
	}

	return room, scopedEvents(tbl)
}

// compileEntity compiles a raw entity and returns the event ids scoped to it.
func compileEntity(raw rawEntity) (types.EntityDef, []string) {
	tbl := raw.table
	entity := types.EntityDef{
		ID:    raw.id,
		Kind:  raw.kind,
		Props: map[string]any{},
	}

	skip := map[string]bool{"events": true, "topics": true}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !skip[string(ks)] {
			entity.Props[string(ks)] = toGoValue(v)
		}
	})

	// Items are takeable unless explicitly set.
	if raw.kind == "item" {
		if _, ok := entity.Props["takeable"]; !ok {
			entity.Props["takeable"] = true
		}
	}

	if topics := getTable(tbl, "topics"); topics != nil {
		entity.Topics = compileTopics(topics)
	}

	return entity, scopedEvents(tbl)
}

func scopedEvents(tbl *lua.LTable) []string {
	var ids []string
	eachTable(getTable(tbl, "events"), func(marker *lua.LTable) {
		if id := getString(marker, "__event_id"); id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

func compileTopics(tbl *lua.LTable) map[string]types.TopicDef {
	topics := map[string]types.TopicDef{}
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch t := v.(type) {
		case lua.LString:
			topics[string(key)] = types.TopicDef{Text: string(t)}
		case *lua.LTable:
			topics[string(key)] = types.TopicDef{
				Text:     getString(t, "text"),
				Requires: compileConditions(getTable(t, "requires")),
				Actions:  compileActions(getTable(t, "actions")),
			}
		}
	})
	return topics
}

func compileEvent(raw rawEvent) types.EventDef {
	tbl := raw.table
	ev := types.EventDef{
		ID:          raw.id,
		Scope:       raw.scope,
		Conditions:  compileConditions(getTable(tbl, "conditions")),
		Actions:     compileActions(getTable(tbl, "actions")),
		Response:    getString(tbl, "response"),
		Once:        getBool(tbl, "once", false),
		Priority:    getInt(tbl, "priority"),
		SourceOrder: raw.order,
	}
	if when := getTable(tbl, "when"); when != nil {
		ev.Pattern = compilePattern(when)
	}
	return ev
}

func compilePattern(tbl *lua.LTable) types.Pattern {
	p := types.Pattern{
		Verb:        getString(tbl, "verb"),
		Object:      getString(tbl, "object"),
		Preposition: getString(tbl, "prep"),
		Indirect:    getString(tbl, "indirect"),
	}
	if p.Preposition == "" {
		p.Preposition = getString(tbl, "preposition")
	}
	return p
}

func compileSolution(tbl *lua.LTable) types.Solution {
	return types.Solution{
		Verb:     getString(tbl, "verb"),
		Item:     getString(tbl, "item"),
		Target:   getString(tbl, "target"),
		Value:    getString(tbl, "value"),
		Sequence: stringList(getTable(tbl, "sequence")),
	}
}

func compilePuzzle(raw rawDef) types.PuzzleDef {
	tbl := raw.table
	p := types.PuzzleDef{
		ID:                 raw.id,
		Name:               getString(tbl, "name"),
		Room:               getString(tbl, "room"),
		Conditions:         compileConditions(getTable(tbl, "conditions")),
		Hints:              stringList(getTable(tbl, "hints")),
		HintCooldown:       int64(getNumber(tbl, "hint_cooldown") * 1000),
		MaxAttempts:        getInt(tbl, "max_attempts"),
		Reward:             compileActions(getTable(tbl, "reward")),
		Points:             getInt(tbl, "points"),
		FailureConsequence: compileActions(getTable(tbl, "on_fail")),
		NoReset:            getBool(tbl, "no_reset", false),
		ResetActions:       compileActions(getTable(tbl, "on_reset")),
		Success:            getString(tbl, "success"),
		Failure:            getString(tbl, "failure"),
	}
	if trigger := getTable(tbl, "trigger"); trigger != nil {
		p.Trigger = compilePattern(trigger)
	}
	if sol := getTable(tbl, "solution"); sol != nil {
		s := compileSolution(sol)
		p.Solution = &s
	}
	eachTable(getTable(tbl, "steps"), func(st *lua.LTable) {
		step := types.StepDef{
			Hints:   stringList(getTable(st, "hints")),
			Success: getString(st, "success"),
			Failure: getString(st, "failure"),
			Reward:  compileActions(getTable(st, "reward")),
			Points:  getInt(st, "points"),
		}
		if sol := getTable(st, "solution"); sol != nil {
			step.Solution = compileSolution(sol)
		}
		p.Steps = append(p.Steps, step)
	})
	return p
}

func compileAchievement(raw rawDef) types.AchievementDef {
	tbl := raw.table
	return types.AchievementDef{
		ID:          raw.id,
		Title:       getString(tbl, "title"),
		Description: getString(tbl, "description"),
		Points:      getInt(tbl, "points"),
		Hidden:      getBool(tbl, "hidden", false),
		Meta:        getInt(tbl, "meta"),
		Target:      getInt(tbl, "target"),
	}
}

func compileEnding(raw rawDef) types.EndingDef {
	tbl := raw.table
	return types.EndingDef{
		ID:          raw.id,
		Title:       getString(tbl, "title"),
		Text:        getString(tbl, "text"),
		Priority:    getInt(tbl, "priority"),
		Conditions:  compileConditions(getTable(tbl, "conditions")),
		Achievement: getString(tbl, "achievement"),
		Outcome:     getString(tbl, "outcome"),
	}
}

// compileConditions compiles an array of conditions. Plain strings are
// flag expressions.
func compileConditions(tbl *lua.LTable) []types.Condition {
	if tbl == nil {
		return nil
	}
	var out []types.Condition
	for i := 1; i <= tbl.MaxN(); i++ {
		if c, ok := compileCondition(tbl.RawGetInt(i)); ok {
			out = append(out, c)
		}
	}
	return out
}

func compileCondition(v lua.LValue) (types.Condition, bool) {
	switch val := v.(type) {
	case lua.LString:
		return types.Condition{Expr: string(val)}, true
	case *lua.LTable:
		condType := getString(val, "type")
		if condType == "" {
			return types.Condition{Expr: getString(val, "expr")}, true
		}
		if condType == "not" {
			inner, ok := compileCondition(val.RawGetString("inner"))
			if !ok {
				return types.Condition{Type: "not"}, true
			}
			return types.Condition{Type: "not", Inner: &inner}, true
		}
		params := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok && string(ks) != "type" {
				params[string(ks)] = toGoValue(v)
			}
		})
		return types.Condition{Type: condType, Params: params}, true
	}
	return types.Condition{}, false
}

func compileActions(tbl *lua.LTable) []types.Action {
	var out []types.Action
	eachTable(tbl, func(t *lua.LTable) {
		out = append(out, compileAction(t))
	})
	return out
}

func compileAction(tbl *lua.LTable) types.Action {
	a := types.Action{Type: types.ActionKind(getString(tbl, "type")), Params: map[string]any{}}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok || string(ks) == "type" {
			return
		}
		if string(ks) == "actions" && a.Type == types.ActSchedule {
			if sub, ok := v.(*lua.LTable); ok {
				a.Actions = compileActions(sub)
			}
			return
		}
		a.Params[string(ks)] = toGoValue(v)
	})
	return a
}

// markScoped assigns a scope to the listed events.
func markScoped(coll *collector, ids []string, scope string) {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	for i := range coll.events {
		if set[coll.events[i].id] {
			coll.events[i].scope = scope
		}
	}
}

// sortedLuaFiles returns .lua files with game.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}

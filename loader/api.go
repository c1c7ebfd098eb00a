package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerConditionHelpers(L)
	registerActionHelpers(L)
}

// curried registers Name "id" { ... }: Name("id") returns a function that
// takes the body table.
func curried(L *lua.LState, name string, store func(id string, tbl *lua.LTable) lua.LValue) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			if v := store(id, tbl); v != nil {
				L.Push(v)
				return 1
			}
			return 0
		}))
		return 1
	}))
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", start = "...", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	curried(L, "Room", func(id string, tbl *lua.LTable) lua.LValue {
		coll.rooms = append(coll.rooms, rawDef{id: id, table: tbl})
		return nil
	})

	for name, kind := range map[string]string{"Item": "item", "NPC": "npc", "Entity": "object"} {
		curried(L, name, func(id string, tbl *lua.LTable) lua.LValue {
			coll.entities = append(coll.entities, rawEntity{id: id, kind: kind, table: tbl})
			return nil
		})
	}

	// Event "id" { when = {...}, conditions = {...}, actions = {...} }
	// returns a marker that rooms and entities list under events = {...}.
	// Events nobody lists are global.
	curried(L, "Event", func(id string, tbl *lua.LTable) lua.LValue {
		coll.events = append(coll.events, rawEvent{
			id:    id,
			table: tbl,
			scope: "global",
			order: coll.nextSourceOrder(),
		})
		marker := L.NewTable()
		marker.RawSetString("__event_id", lua.LString(id))
		return marker
	})

	curried(L, "Puzzle", func(id string, tbl *lua.LTable) lua.LValue {
		coll.puzzles = append(coll.puzzles, rawDef{id: id, table: tbl})
		return nil
	})

	curried(L, "Achievement", func(id string, tbl *lua.LTable) lua.LValue {
		coll.achievements = append(coll.achievements, rawDef{id: id, table: tbl})
		return nil
	})

	curried(L, "Ending", func(id string, tbl *lua.LTable) lua.LValue {
		coll.endings = append(coll.endings, rawDef{id: id, table: tbl})
		return nil
	})

	// On("event_type", { conditions = {...}, actions = {...} })
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		eventType := L.CheckString(1)
		tbl := L.CheckTable(2)
		coll.handlers = append(coll.handlers, rawHandler{eventType: eventType, table: tbl})
		return 0
	}))

	// When { verb = "..." } and Then { ... } are pass-throughs for readability.
	for _, name := range []string{"When", "Then"} {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			L.Push(L.CheckTable(1))
			return 1
		}))
	}
}

// helper registers a global that builds {type = kind, keys[i] = arg i}.
// Missing trailing arguments are left out of the table.
func helper(L *lua.LState, name, kind string, keys ...string) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(kind))
		for i, key := range keys {
			if v := L.Get(i + 1); v != lua.LNil {
				tbl.RawSetString(key, v)
			}
		}
		L.Push(tbl)
		return 1
	}))
}

func registerConditionHelpers(L *lua.LState) {
	// Flag("lamp_lit and not door_open"): a flag expression.
	L.SetGlobal("Flag", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("expr", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	helper(L, "FlagIs", "flag_is", "flag", "value", "op")
	helper(L, "HasItem", "has_item", "item")
	helper(L, "InRoom", "in_room", "room")
	helper(L, "PropIs", "prop_is", "entity", "prop", "value")
	helper(L, "Score", "score", "op", "value")
	helper(L, "Achieved", "achievement", "id")
	helper(L, "OnPath", "path", "path")
	helper(L, "Factor", "factor", "name", "op", "value")
	helper(L, "Time", "time", "op", "seconds")
	helper(L, "Solved", "puzzle_solved", "puzzle")

	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("not"))
		tbl.RawSetString("inner", L.Get(1))
		L.Push(tbl)
		return 1
	}))
}

func registerActionHelpers(L *lua.LState) {
	helper(L, "Say", "say", "text")
	helper(L, "SetFlag", "set_flag", "flag", "value")
	helper(L, "ClearFlag", "clear_flag", "flag")
	helper(L, "GiveItem", "give_item", "item")
	helper(L, "RemoveItem", "remove_item", "item")
	helper(L, "AddScore", "add_score", "points", "reason")
	helper(L, "MovePlayer", "move_player", "room")
	helper(L, "MoveEntity", "move_entity", "entity", "room")
	helper(L, "SetProp", "set_prop", "entity", "prop", "value")
	helper(L, "OpenExit", "open_exit", "room", "direction", "target")
	helper(L, "CloseExit", "close_exit", "room", "direction")
	helper(L, "Schedule", "schedule", "delay", "actions")
	helper(L, "EndGame", "end_game", "ending")
	helper(L, "Unlock", "unlock_achievement", "id")
	helper(L, "Progress", "achievement_progress", "id", "amount")
	helper(L, "SetPath", "set_path", "path")
	helper(L, "AddFactor", "add_factor", "name", "amount")
	helper(L, "EmitEvent", "emit_event", "event", "data")
	helper(L, "StartPuzzle", "start_puzzle", "puzzle")
	helper(L, "ResetPuzzle", "reset_puzzle", "puzzle")
	helper(L, "Stop", "stop")
}

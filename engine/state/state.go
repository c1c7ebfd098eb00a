// Package state manages the mutable game state and property lookups
// with override layering (runtime state overrides base definitions).
package state

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nathoo/fablecore/types"
)

// Defs holds the immutable game definitions loaded from Lua.
type Defs struct {
	Game         types.GameDef
	Rooms        map[string]types.RoomDef
	Entities     map[string]types.EntityDef
	GlobalEvents []types.EventDef
	Handlers     []types.EventHandler
	Puzzles      map[string]types.PuzzleDef
	PuzzleOrder  []string
	Achievements map[string]types.AchievementDef
	// AchievementOrder preserves definition order for meta checks and listings.
	AchievementOrder []string
	Endings          []types.EndingDef
}

// NewState creates a fresh game state from definitions.
func NewState(defs *Defs) *types.State {
	s := &types.State{
		SessionID: uuid.NewString(),
		Player: types.Player{
			Location:  defs.Game.Start,
			Inventory: []string{},
		},
		Entities:            map[string]types.EntityState{},
		Flags:               map[string]any{},
		Factors:             map[string]float64{},
		Puzzles:             map[string]types.PuzzleState{},
		Achievements:        []types.UnlockedAchievement{},
		AchievementProgress: map[string]int{},
		Scheduled:           []types.ScheduledAction{},
		FiredEvents:         map[string]bool{},
		CommandLog:          []string{},
	}
	if defs.Game.Start != "" {
		Touch(&s.Touched.Rooms, defs.Game.Start)
	}
	return s
}

// GetFlag returns the raw value of a flag and whether it is set.
func GetFlag(s *types.State, name string) (any, bool) {
	v, ok := s.Flags[name]
	return v, ok
}

// FlagTruthy returns the truthiness of a flag. Unset flags are false.
func FlagTruthy(s *types.State, name string) bool {
	v, ok := s.Flags[name]
	if !ok {
		return false
	}
	return Truthy(v)
}

// Truthy reports whether a flag value counts as true.
// Numbers are true when non-zero, strings when non-empty and not "false"/"0".
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "0", "no":
			return false
		}
		return true
	default:
		return true
	}
}

// SetFlag stores a flag value.
func SetFlag(s *types.State, name string, value any) {
	if s.Flags == nil {
		s.Flags = map[string]any{}
	}
	s.Flags[name] = value
}

// ClearFlag removes a flag entirely.
func ClearFlag(s *types.State, name string) {
	delete(s.Flags, name)
}

// FlagNumber returns a numeric view of a flag (0 when unset or non-numeric).
func FlagNumber(s *types.State, name string) float64 {
	switch t := s.Flags[name].(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return 0
}

// HasItem returns true if the player has the given item in inventory.
func HasItem(s *types.State, itemID string) bool {
	for _, id := range s.Player.Inventory {
		if id == itemID {
			return true
		}
	}
	return false
}

// PlayerLocation returns the player's current room ID.
func PlayerLocation(s *types.State) string {
	return s.Player.Location
}

// HasAchievement reports whether an achievement has been unlocked.
func HasAchievement(s *types.State, id string) bool {
	for _, a := range s.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// GetEntityProp returns a property value for an entity, checking
// runtime state overrides first, then falling back to the base definition.
// Returns the value and whether it was found.
func GetEntityProp(s *types.State, defs *Defs, entityID string, prop string) (any, bool) {
	if es, ok := s.Entities[entityID]; ok {
		if v, ok := es.Props[prop]; ok {
			return v, true
		}
	}
	if def, ok := defs.Entities[entityID]; ok {
		if v, ok := def.Props[prop]; ok {
			return v, true
		}
	}
	return nil, false
}

// EntityName returns the display name of an entity, or its ID.
func EntityName(s *types.State, defs *Defs, entityID string) string {
	if name, ok := GetEntityProp(s, defs, entityID, "name"); ok {
		if str, ok := name.(string); ok && str != "" {
			return str
		}
	}
	return entityID
}

// EntityLocation returns the effective location of an entity, checking
// the runtime state override first, then the base definition.
func EntityLocation(s *types.State, defs *Defs, entityID string) string {
	if es, ok := s.Entities[entityID]; ok && es.Location != "" {
		return es.Location
	}
	if def, ok := defs.Entities[entityID]; ok {
		if loc, ok := def.Props["location"]; ok {
			if str, ok := loc.(string); ok {
				return str
			}
		}
	}
	return ""
}

// EntitiesInRoom returns the sorted IDs of all entities whose effective
// location matches the given room ID. Carried items are never in a room.
func EntitiesInRoom(s *types.State, defs *Defs, roomID string) []string {
	var result []string
	for id := range defs.Entities {
		if EntityLocation(s, defs, id) == roomID && !HasItem(s, id) {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}

// Pool names in resolution order.
const (
	PoolObject    = "object"
	PoolItem      = "item"
	PoolInventory = "inventory"
	PoolNPC       = "npc"
)

// Pools returns the resolvable candidates in fixed order: room objects,
// room items, inventory, room NPCs. IDs never repeat across pools.
func Pools(s *types.State, defs *Defs) [][]types.Candidate {
	var objects, items, npcs, inv []types.Candidate
	for _, id := range EntitiesInRoom(s, defs, s.Player.Location) {
		if hidden, _ := GetEntityProp(s, defs, id, "hidden"); hidden == true {
			continue
		}
		c := types.Candidate{ID: id, Name: EntityName(s, defs, id)}
		switch defs.Entities[id].Kind {
		case "item":
			c.Pool = PoolItem
			items = append(items, c)
		case "npc":
			c.Pool = PoolNPC
			npcs = append(npcs, c)
		default:
			c.Pool = PoolObject
			objects = append(objects, c)
		}
	}
	for _, id := range s.Player.Inventory {
		inv = append(inv, types.Candidate{ID: id, Name: EntityName(s, defs, id), Pool: PoolInventory})
	}
	return [][]types.Candidate{objects, items, inv, npcs}
}

// RoomExits returns the effective exits for a room. Runtime exit overrides
// (from open_exit/close_exit actions) are layered on top of base exits.
func RoomExits(s *types.State, defs *Defs, roomID string) map[string]string {
	room, ok := defs.Rooms[roomID]
	if !ok {
		return nil
	}
	exits := make(map[string]string, len(room.Exits))
	for dir, target := range room.Exits {
		exits[dir] = target
	}
	// Convention: exit overrides stored as "exit:<direction>" props on the room entity.
	if es, ok := s.Entities["room:"+roomID]; ok {
		for key, val := range es.Props {
			dir, found := strings.CutPrefix(key, "exit:")
			if !found {
				continue
			}
			if target, ok := val.(string); ok {
				if target == "" {
					delete(exits, dir)
				} else {
					exits[dir] = target
				}
			}
		}
	}
	return exits
}

// Touch appends id to list if not already present.
func Touch(list *[]string, id string) {
	for _, v := range *list {
		if v == id {
			return
		}
	}
	*list = append(*list, id)
}

// PuzzleState returns the state for a puzzle, creating an empty one if needed.
func PuzzleState(s *types.State, id string) types.PuzzleState {
	if ps, ok := s.Puzzles[id]; ok {
		return ps
	}
	return types.PuzzleState{Hints: types.HintState{LastAt: -1}}
}

// Package dialogue implements the NPC topic system.
package dialogue

import (
	"sort"
	"strings"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// AvailableTopics returns the sorted topic keys whose conditions are met.
func AvailableTopics(npcID string, s *types.State, defs *state.Defs) []string {
	ent, ok := defs.Entities[npcID]
	if !ok || ent.Topics == nil {
		return nil
	}

	var result []string
	for key, topic := range ent.Topics {
		if conditions.All(topic.Requires, s, defs) {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result
}

// SelectTopic returns the text and actions for a chosen topic.
// Returns empty text and nil actions if the topic doesn't exist or its
// conditions are not met.
func SelectTopic(npcID, topicKey string, s *types.State, defs *state.Defs) (string, []types.Action) {
	ent, ok := defs.Entities[npcID]
	if !ok || ent.Topics == nil {
		return "", nil
	}

	topic, ok := ent.Topics[topicKey]
	if !ok {
		return "", nil
	}

	if !conditions.All(topic.Requires, s, defs) {
		return "", nil
	}

	return topic.Text, topic.Actions
}

// FindTopic maps what the player typed ("the old map") to an available
// topic key: exact key, key with underscores, then a unique prefix.
func FindTopic(npcID, phrase string, s *types.State, defs *state.Defs) (string, bool) {
	available := AvailableTopics(npcID, s, defs)
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	phrase = strings.TrimPrefix(phrase, "the ")
	if phrase == "" {
		return "", false
	}
	underscored := strings.ReplaceAll(phrase, " ", "_")

	for _, key := range available {
		if key == phrase || key == underscored {
			return key, true
		}
	}

	var prefixed []string
	for _, key := range available {
		if strings.HasPrefix(key, underscored) {
			prefixed = append(prefixed, key)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], true
	}
	return "", false
}

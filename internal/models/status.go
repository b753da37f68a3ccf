package models

import (
	"encoding/json"
	"strings"
)

// BotStatus is the liveness payload returned by the bot's status endpoint.
// Guilds is kept raw because deployments have historically reported the
// guild list in several shapes; use GuildIDSet to normalize it.
type BotStatus struct {
	Online        bool            `json:"online"`
	GuildCount    int             `json:"guildCount"`
	ActivePlayers int             `json:"activePlayers"`
	Uptime        int64           `json:"uptime"`
	Guilds        json.RawMessage `json:"guilds"`
}

// guildObject matches the object shapes {"id": "..."} and {"guildId": "..."}.
type guildObject struct {
	ID      string `json:"id"`
	GuildID string `json:"guildId"`
}

// guildContainer matches named sub-array shapes like {"ids": [...]},
// {"guilds": [...]}, or {"guildIds": [...]}.
type guildContainer struct {
	IDs      []string `json:"ids"`
	Guilds   []string `json:"guilds"`
	GuildIDs []string `json:"guildIds"`
}

// GuildIDSet derives the set of guild IDs the bot currently serves from the
// raw guild list. Candidate shapes are tried in a fixed priority order:
// array of ID strings, array of id/guildId objects, then a named sub-array.
// Unrecognized payloads yield an empty set, never an error.
func (s *BotStatus) GuildIDSet() map[string]struct{} {
	out := make(map[string]struct{})
	if len(s.Guilds) == 0 {
		return out
	}

	var ids []string
	if err := json.Unmarshal(s.Guilds, &ids); err == nil {
		addGuildIDs(out, ids)
		return out
	}

	var objs []guildObject
	if err := json.Unmarshal(s.Guilds, &objs); err == nil {
		for _, o := range objs {
			id := o.ID
			if id == "" {
				id = o.GuildID
			}
			addGuildIDs(out, []string{id})
		}
		return out
	}

	var container guildContainer
	if err := json.Unmarshal(s.Guilds, &container); err == nil {
		addGuildIDs(out, container.IDs)
		addGuildIDs(out, container.Guilds)
		addGuildIDs(out, container.GuildIDs)
	}

	return out
}

func addGuildIDs(set map[string]struct{}, ids []string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
}

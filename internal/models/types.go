package models

import "fmt"

// MediaType represents the kind of a catalog entry (movie or episode)
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// Status represents the viewing state of a media entry
type Status string

const (
	StatusUnseen Status = "Unseen"
	StatusSeen   Status = "Seen"
)

// Action represents a discrete user input event delivered to the session
type Action string

const (
	ActionNext        Action = "next"
	ActionPrevious    Action = "previous"
	ActionPlayPause   Action = "play_pause"
	ActionMarkSeen    Action = "mark_seen"
	ActionVolumeUp    Action = "volume_up"
	ActionVolumeDown  Action = "volume_down"
	ActionToggleMute  Action = "toggle_mute"
	ActionToggleGuide Action = "toggle_guide"
	ActionRestart     Action = "restart"
	ActionQuit        Action = "quit"
)

// ParseAction validates a raw action string from the input layer
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionNext, ActionPrevious, ActionPlayPause, ActionMarkSeen,
		ActionVolumeUp, ActionVolumeDown, ActionToggleMute,
		ActionToggleGuide, ActionRestart, ActionQuit:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

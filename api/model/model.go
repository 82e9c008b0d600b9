package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a-bouts/voyage-planner/session"
)

var ErrUnknownIntent = errors.New("unknown intent type")

type envelope struct {
	Type string `json:"type"`
}

func decode[T session.Intent](raw []byte) (session.Intent, error) {
	var in T
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return in, nil
}

// Only intents a renderer may send. Completions are produced by the session
// loop itself.
var intents = map[string]func([]byte) (session.Intent, error){
	"start":                     decode[session.Start],
	"switch_mode":               decode[session.SwitchMode],
	"map_click":                 decode[session.MapClick],
	"set_input_kind":            decode[session.SetInputKind],
	"focus":                     decode[session.Focus],
	"enter_coordinates":         decode[session.EnterCoordinates],
	"search_input":              decode[session.SearchInput],
	"pick_search_result":        decode[session.PickSearchResult],
	"pick_history":              decode[session.PickHistory],
	"clear":                     decode[session.Clear],
	"select_vessel_class":       decode[session.SelectVesselClass],
	"set_vessel_speed":          decode[session.SetVesselSpeed],
	"set_vessel_fuel":           decode[session.SetVesselFuel],
	"set_reach_params":          decode[session.SetReachParams],
	"select_saved_port":         decode[session.SelectSavedPort],
	"select_saved_speed":        decode[session.SelectSavedSpeed],
	"calculate":                 decode[session.Calculate],
	"check_weather":             decode[session.CheckWeather],
	"save_search":               decode[session.SaveSearch],
	"replay_saved":              decode[session.ReplaySaved],
	"toggle_overlay":            decode[session.ToggleOverlay],
	"toggle_custom_port_select": decode[session.ToggleCustomPortSelect],
	"set_custom_port":           decode[session.SetCustomPort],
	"submit_custom_port":        decode[session.SubmitCustomPort],
}

// DecodeIntent reads a {"type": "...", ...} envelope. The remaining fields
// of the envelope are the intent itself.
func DecodeIntent(raw []byte) (session.Intent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	fn, ok := intents[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownIntent, env.Type)
	}
	in, err := fn(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Type, err)
	}
	return in, nil
}

type Instruction struct {
	Op   string              `json:"op"`
	Seq  uint64              `json:"seq"`
	Data session.Instruction `json:"data"`
}

func Instructions(events []session.Event) []Instruction {
	out := make([]Instruction, 0, len(events))
	for _, e := range events {
		out = append(out, Instruction{Op: e.Instruction.Op(), Seq: e.Seq, Data: e.Instruction})
	}
	return out
}

// Batch is a run of instructions. Last is the sequence number to resume the
// feed from.
type Batch struct {
	Last         uint64        `json:"last"`
	Instructions []Instruction `json:"instructions"`
}

func NewBatch(events []session.Event, after uint64) Batch {
	b := Batch{Last: after, Instructions: Instructions(events)}
	if n := len(events); n > 0 && events[n-1].Seq > b.Last {
		b.Last = events[n-1].Seq
	}
	return b
}

type NewSession struct {
	// User namespaces the history lists. Sessions of the same user share
	// their recent ports, vessels and saved searches.
	User string `json:"user"`
}

type Session struct {
	ID string `json:"id"`
	Batch
}

type Error struct {
	Error string `json:"error"`
}

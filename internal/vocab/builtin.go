package vocab

import "time"

const (
	TravellingMerchant  Kind = "Travelling merchant"
	JellyfishSwarm      Kind = "Jellyfish swarm"
	TreasureTurtle      Kind = "Treasure turtle"
	WhaleSighting       Kind = "Whale sighting"
	SeaMonsterEncounter Kind = "Sea monster encounter"
	StormySeas          Kind = "Stormy seas"
	SailfishFrenzy      Kind = "Sailfish frenzy"
	Testing             Kind = "Testing"
)

var builtinKinds = []EventKind{
	{
		Name:         TravellingMerchant,
		Abbreviation: "TM",
		Phrases: []string{
			"The travelling merchant has arrived at the hub",
			"Rare goods for sale, come and take a look",
			"Fresh stock from distant shores, today only",
		},
		Departures: []string{"The merchant packs up the stall and sets sail"},
		Duration:   10 * time.Minute,
	},
	{
		Name:         JellyfishSwarm,
		Abbreviation: "Jelly",
		Phrases: []string{
			"A swarm of jellyfish drifts towards the docks",
			"Careful, those tentacles sting something fierce",
		},
		Departures: []string{"The jellyfish disperse back into deep water"},
		Duration:   3 * time.Minute,
	},
	{
		Name:         TreasureTurtle,
		Abbreviation: "Turtle",
		Phrases: []string{
			"A treasure turtle surfaces near the pier",
			"Its shell glitters with barnacled coins",
		},
		Departures: []string{"The turtle dives beneath the waves and vanishes"},
		Duration:   2 * time.Minute,
	},
	{
		Name:         WhaleSighting,
		Abbreviation: "Whale",
		Phrases: []string{
			"A great whale breaches off the northern reef",
			"Spray shoots high from the blowhole",
		},
		Departures: []string{"The whale sinks out of sight into the abyss"},
		Duration:   3 * time.Minute,
	},
	{
		Name:         SeaMonsterEncounter,
		Abbreviation: "Monster",
		Phrases: []string{
			"Something enormous stirs beneath the hull",
			"Great coils rise from the churning water",
		},
		Departures: []string{"The monster retreats into the murky depths"},
		Duration:   2 * time.Minute,
	},
	{
		Name:         StormySeas,
		Abbreviation: "Storm",
		Phrases: []string{
			"Dark clouds gather and the sea begins to heave",
			"Lightning crackles across the open ocean",
		},
		Departures: []string{"The storm passes and the waters grow calm"},
		Duration:   3 * time.Minute,
	},
	{
		Name:         SailfishFrenzy,
		Abbreviation: "Sailfish",
		Phrases: []string{
			"A shoal of sailfish is leaping around the boat",
			"The sailfish are biting like mad",
		},
		Departures: []string{"The sailfish scatter and the frenzy is over"},
		Duration:   2 * time.Minute,
	},
	{
		Name:         Testing,
		Abbreviation: "Test",
		Phrases:      []string{"Testing the event tracker start signal"},
		Departures:   []string{"Wrapping up a dry run for the watcher"},
		Duration:     30 * time.Second,
		Debug:        true,
	},
}

var builtinPrefixes = []string{"Bystander", "Sailor", "Harbour master", "Merchant"}

var builtinHops = []string{"Attempting to switch worlds"}

// Builtin returns the Deep Sea Fishing hub vocabulary.
func Builtin(opts ...Option) *Vocabulary {
	v, err := New(builtinKinds, builtinPrefixes, builtinHops, opts...)
	if err != nil {
		panic("vocab: invalid builtin table: " + err.Error())
	}
	return v
}

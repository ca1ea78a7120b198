package config

// schema declares every accepted key with its default. #Config is a
// definition, so unknown keys are rejected at any depth.
const schema = `
#Config: {
	seed: *0 | int

	mood: {
		distractedFrom:    *30 | number & >=0
		rebelFrom:         *65 | number & >=0
		max:               *100 | number & >0
		innovationBonus:   *25 | number & >=0
		cadenzaBonus:      *40 | number & >=0
		repetitionPenalty: *15 | number & >=0
		cadenzaStreak:     *3 | int & >=1
	}

	analysis: {
		historySize:         *10 | int & >=2
		innovationThreshold: *0.2 | number & >=0 & <=1
		pitchTolerance:      *1 | int & >=0
	}

	perform: {
		neighborNoteChance:   *0.3 | number & >=0 & <=1
		rhythmOverrideChance: *0.4 | number & >=0 & <=1
		chordDropChance:      *0.2 | number & >=0 & <=1
		dropoutChance:        *0.1 | number & >=0 & <=1
		distractedJitterMs:   *100 | number & >=0
		rebelJitterMs:        *500 | number & >=0
		rampMs:               *100 | number & >=0
	}

	dispatch: {
		cooldownMs: *150 | int & >=0
		threshold:  *0.05 | number & >=0
	}

	audio: {
		sampleRate:   *48000 | int & >=8000 & <=192000
		masterVolume: *0.5 | number & >=0 & <=1
		bpm:          *120 | number & >0
		instrument:   *"piano" | "strings" | "synth"
		latencyMs:    *60 | int & >=0
	}

	log: {
		level:   *"info" | "debug" | "warn" | "error"
		journal: *false | bool
	}

	journal: path: *"" | string
	http: addr: *"" | string
}
`

package synth

// Voice pairs a display name with the service voice identifier.
type Voice struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// DefaultVoice is used when a job does not request a specific voice.
const DefaultVoice = "en-US-SteffanNeural"

var voices = []Voice{
	{Name: "Aria", ShortName: "en-US-AriaNeural"},
	{Name: "Jenny", ShortName: "en-US-JennyNeural"},
	{Name: "Guy", ShortName: "en-US-GuyNeural"},
	{Name: "Ana", ShortName: "en-US-AnaNeural"},
	{Name: "Christopher", ShortName: "en-US-ChristopherNeural"},
	{Name: "Eric", ShortName: "en-US-EricNeural"},
	{Name: "Michelle", ShortName: "en-US-MichelleNeural"},
	{Name: "Roger", ShortName: "en-US-RogerNeural"},
	{Name: "Steffan", ShortName: "en-US-SteffanNeural"},
	{Name: "Andrew", ShortName: "en-US-AndrewMultilingualNeural"},
	{Name: "Brian", ShortName: "en-US-BrianMultilingualNeural"},
}

// Voices returns the catalog of selectable voices.
func Voices() []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

// ValidVoice reports whether the identifier is in the catalog.
func ValidVoice(shortName string) bool {
	for _, v := range voices {
		if v.ShortName == shortName {
			return true
		}
	}
	return false
}

//go:build linux

package speech

func platformEngines(voice string) []engine {
	return []engine{
		// -w makes spd-say block until playback ends
		{path: "spd-say", args: func(text string) []string {
			args := []string{"-w"}
			if voice != "" {
				args = append(args, "-y", voice)
			}
			return append(args, text)
		}},
		{path: "espeak", args: func(text string) []string {
			if voice != "" {
				return []string{"-v", voice, text}
			}
			return []string{text}
		}},
	}
}

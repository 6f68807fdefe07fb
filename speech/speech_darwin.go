//go:build darwin

package speech

func platformEngines(voice string) []engine {
	return []engine{
		{path: "say", args: func(text string) []string {
			if voice != "" {
				return []string{"-v", voice, text}
			}
			return []string{text}
		}},
	}
}

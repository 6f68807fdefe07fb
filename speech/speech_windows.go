//go:build windows

package speech

import (
	"fmt"
	"strings"
)

func platformEngines(voice string) []engine {
	return []engine{
		{path: "powershell", args: func(text string) []string {
			script := "Add-Type -AssemblyName System.Speech; " +
				"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; "
			if voice != "" {
				script += fmt.Sprintf("$s.SelectVoice('%s'); ", strings.ReplaceAll(voice, "'", "''"))
			}
			script += fmt.Sprintf("$s.Speak('%s')", strings.ReplaceAll(text, "'", "''"))
			return []string{"-NoProfile", "-Command", script}
		}},
	}
}

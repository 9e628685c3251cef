// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
)

// allowedVerbs is the fixed vocabulary of the command DSL: comma-separated steps, each "name" or "name:arg".
var allowedVerbs = map[string]bool{
	"sync":         true,
	"start":        true,
	"new":          true,
	"reboot":       true,
	"halt":         true,
	"shutdown":     true,
	"partition":    true,
	"format":       true,
	"initcache":    true,
	"create_image": true,
	"upload_image": true,
}

// osIndexVerbs require a 1-based OS-index integer argument.
var osIndexVerbs = map[string]bool{
	"sync": true, "start": true, "new": true,
}

// noArgVerbs never take an argument.
var noArgVerbs = map[string]bool{
	"reboot": true, "halt": true, "shutdown": true, "partition": true,
}

// downloadTypes is the closed set of initcache download types, matching
// the start.conf DownloadType vocabulary.
var downloadTypes = map[string]bool{
	"rsync": true, "torrent": true, "multicast": true,
}

// Step is one parsed command verb, e.g. start:1 or initcache:rsync.
type Step struct {
	Verb string
	Arg  string // raw argument, empty when the verb takes none
}

// ParseCommands validates and parses a comma-separated command string
// against the fixed verb grammar. It rejects unknown
// verb names before any step is returned, and never includes the
// noauto/disablegui flags; those are a separate, caller-supplied option.
func ParseCommands(commands string) ([]Step, error) {
	commands = strings.TrimSpace(commands)
	if commands == "" {
		return nil, fmt.Errorf("empty command string")
	}
	parts := strings.Split(commands, ",")
	steps := make([]Step, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty command step")
		}
		verb, argStr, hasArg := strings.Cut(p, ":")
		verb = strings.ToLower(verb)
		if verb == "noauto" || verb == "disablegui" {
			return nil, fmt.Errorf("flag %q must be supplied via options, not the command string", verb)
		}
		if !allowedVerbs[verb] {
			return nil, fmt.Errorf("unknown command verb: %q", verb)
		}

		step := Step{Verb: verb}
		switch {
		case osIndexVerbs[verb]:
			if !hasArg {
				return nil, fmt.Errorf("command %q requires a 1-based OS index argument", verb)
			}
			n, err := strconv.Atoi(argStr)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("command %q has an invalid OS index: %q", verb, argStr)
			}
			step.Arg = argStr
		case verb == "format":
			if hasArg {
				n, err := strconv.Atoi(argStr)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("command %q has an invalid partition index: %q", verb, argStr)
				}
				step.Arg = argStr
			}
		case verb == "initcache":
			if !hasArg || !downloadTypes[strings.ToLower(argStr)] {
				return nil, fmt.Errorf("command %q requires a download type argument (rsync|torrent|multicast)", verb)
			}
			step.Arg = strings.ToLower(argStr)
		case noArgVerbs[verb]:
			if hasArg {
				return nil, fmt.Errorf("command %q does not take an argument", verb)
			}
		default: // create_image, upload_image: optional free-form image name
			if hasArg {
				step.Arg = argStr
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// NormalizeCommands renders steps back into canonical command-DSL form:
// lowercased, no spaces, "name" or "name:arg" joined by commas.
func NormalizeCommands(steps []Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		if s.Arg != "" {
			parts[i] = s.Verb + ":" + s.Arg
		} else {
			parts[i] = s.Verb
		}
	}
	return strings.Join(parts, ",")
}

// RenderCommandFile renders the .cmd file LINBO reads on next boot or
// the wrapper command sent over SSH.
func RenderCommandFile(steps []Step) string {
	return NormalizeCommands(steps) + "\n"
}

// RenderOnbootCommand prepends the noauto/disablegui flags, in that
// order and always first, ahead of the normalized command-DSL body.
func RenderOnbootCommand(steps []Step, noAuto, disableGUI bool) string {
	var prefix strings.Builder
	if noAuto {
		prefix.WriteString("noauto,")
	}
	if disableGUI {
		prefix.WriteString("disablegui,")
	}
	return prefix.String() + NormalizeCommands(steps)
}

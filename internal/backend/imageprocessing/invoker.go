package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"
	"time"
)

// CommandInvoker executes a sequence of commands on a decoded image
type CommandInvoker struct {
	commands []Command
}

// NewCommandInvoker creates a new command invoker
func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// Execute applies all commands in sequence and reports the suffixes of the ones that changed the image
func (i *CommandInvoker) Execute(img image.Image) (image.Image, []string, error) {
	start := time.Now()

	if len(i.commands) == 0 {
		slog.Debug("no commands to execute, returning original image")
		return img, nil, nil
	}

	current := img
	var applied []string

	for idx, command := range i.commands {
		commandStart := time.Now()

		processed, changed, err := command.Execute(current)
		if err != nil {
			slog.Error("command execution failed",
				"index", idx,
				"command_name", command.Name(),
				"error", err)
			return nil, nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("command completed",
			"index", idx,
			"command_name", command.Name(),
			"changed", changed,
			"duration_ms", time.Since(commandStart).Milliseconds(),
			"width", processed.Bounds().Dx(),
			"height", processed.Bounds().Dy())

		if changed {
			applied = append(applied, command.Suffix())
		}
		current = processed
	}

	slog.Debug("image processing pipeline completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands),
		"applied", applied)

	return current, applied, nil
}

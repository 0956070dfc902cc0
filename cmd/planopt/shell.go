package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/squareup/planopt/errors"
)

type ShellCommand struct {
	VI bool `help:"Enable VI mode."`
}

func (c *ShellCommand) Run(s *session) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.WithStack(err)
	}
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:            filepath.Join(home, ".planopt.history"),
		DisableAutoSaveHistory: true,
		VimMode:                c.VI,
		Stdin:                  io.NopCloser(s.in),
		Stdout:                 s.out,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = rl.Close()
	}()
	for {
		// Gather multi-line plan terminated by a ;
		rl.SetPrompt("planopt> ")
		var lines []string
		for {
			line, err := rl.Readline()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				if err.Error() == "Interrupt" {
					return nil
				}
				return errors.WithStack(err)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lines = append(lines, line)
			if strings.HasSuffix(line, ";") {
				break
			}
			rl.SetPrompt("         ")
		}
		statement := strings.Join(lines, "\n")
		_ = rl.SaveHistory(strings.Join(lines, " "))

		if err := s.execute(statement); err != nil {
			return err
		}
	}
}
